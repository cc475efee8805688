package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zombor/payroll-scanner/internal/notify"
	"github.com/zombor/payroll-scanner/internal/report"
	"github.com/zombor/payroll-scanner/internal/scanning"
)

var (
	// ErrNoFiles is returned when an upload carries no files
	ErrNoFiles = errors.New("no files provided")
	// ErrNoUsableFiles is returned when none of the uploaded files is a supported document
	ErrNoUsableFiles = errors.New("no supported documents provided")
	// ErrBatchInUse is returned when a batch is already being processed
	ErrBatchInUse = errors.New("batch is already being processed")
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaces      = regexp.MustCompile(`\s+`)
	ordinal     = regexp.MustCompile(`^\d{3}_`)
)

// IDGenerator generates unique batch IDs
type IDGenerator interface {
	Generate() string
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// PageSource yields the OCR text of each page of a document
type PageSource interface {
	Pages(ctx context.Context, path string) iter.Seq2[scanning.Page, error]
}

// ReportBuilder renders records into a report file
type ReportBuilder interface {
	Build(records []scanning.Record) (report.Artifact, error)
}

// Notifier hands a report off for background delivery
type Notifier interface {
	Enqueue(job notify.Job) bool
}

// ReportOpener opens previously generated reports by file name
type ReportOpener interface {
	Open(name string) (*os.File, fs.FileInfo, error)
}

// Upload is one file received from the client
type Upload struct {
	Filename string
	Data     []byte
}

// Service creates batches and runs them through the pipeline
type Service struct {
	storage     Storage
	reports     ReportOpener
	pages       PageSource
	interpreter scanning.Interpreter
	builder     ReportBuilder
	notifier    Notifier
	idGenerator IDGenerator

	mu     sync.Mutex
	active map[string]bool
}

// NewService creates a new Service with a UUID batch ID generator
func NewService(storage Storage, reports ReportOpener, pages PageSource, interpreter scanning.Interpreter, builder ReportBuilder, notifier Notifier) *Service {
	return NewServiceWithDeps(storage, reports, pages, interpreter, builder, notifier, uuidGenerator{})
}

// NewServiceWithDeps creates a new Service with a custom ID generator for testing
func NewServiceWithDeps(storage Storage, reports ReportOpener, pages PageSource, interpreter scanning.Interpreter, builder ReportBuilder, notifier Notifier, idGen IDGenerator) *Service {
	return &Service{
		storage:     storage,
		reports:     reports,
		pages:       pages,
		interpreter: interpreter,
		builder:     builder,
		notifier:    notifier,
		idGenerator: idGen,
		active:      make(map[string]bool),
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "documento"
	}
	return base + ext
}

// displayName strips the ordinal prefix added when a document was stored
func displayName(path string) string {
	return ordinal.ReplaceAllString(filepath.Base(path), "")
}

// CreateBatch stores the supported files as a new batch and returns its ID.
// Unsupported files are ignored; if none remain, no batch is created.
func (s *Service) CreateBatch(files []Upload) (string, error) {
	usable := make([]Upload, 0, len(files))
	named := 0
	for _, f := range files {
		if f.Filename == "" {
			continue
		}
		named++
		if scanning.IsSupported(f.Filename) {
			usable = append(usable, f)
		}
	}
	if named == 0 {
		return "", ErrNoFiles
	}
	if len(usable) == 0 {
		return "", ErrNoUsableFiles
	}

	id := s.idGenerator.Generate()
	if err := s.storage.Create(id); err != nil {
		return "", fmt.Errorf("creating batch: %w", err)
	}

	for i, f := range usable {
		name := fmt.Sprintf("%03d_%s", i, sanitizeFilename(f.Filename))
		if _, err := s.storage.Save(id, name, f.Data); err != nil {
			if rmErr := s.storage.Remove(id); rmErr != nil {
				slog.Error("Failed to remove partial batch", "batch_id", id, "error", rmErr)
			}
			return "", fmt.Errorf("saving %s: %w", f.Filename, err)
		}
	}

	slog.Info("Batch created", "batch_id", id, "documents", len(usable), "ignored", named-len(usable))
	return id, nil
}

// StartRun claims a batch for processing. The returned Run must be executed;
// it removes the batch when done.
func (s *Service) StartRun(id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBatchNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active[id] {
		return nil, fmt.Errorf("%w: %s", ErrBatchInUse, id)
	}
	if !s.storage.Exists(id) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	s.active[id] = true

	return &Run{service: s, id: id, state: StateProcessing}, nil
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

// OpenReport opens a generated report for download
func (s *Service) OpenReport(name string) (*os.File, fs.FileInfo, error) {
	return s.reports.Open(name)
}
