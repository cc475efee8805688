package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zombor/payroll-scanner/internal/scanning"
)

var (
	// ErrBatchNotFound is returned for unknown or already consumed batches
	ErrBatchNotFound = errors.New("batch not found")
	// ErrReportNotFound is returned when a requested report file does not exist
	ErrReportNotFound = errors.New("report not found")
)

// Storage defines the interface for batch document storage
type Storage interface {
	// Create makes the empty storage location of a batch
	Create(id string) error

	// Save stores one document of a batch and returns its path
	Save(id string, filename string, data []byte) (string, error)

	// Documents lists the document paths of a batch in upload order
	Documents(id string) ([]string, error)

	// Exists reports whether the batch storage location exists
	Exists(id string) bool

	// Remove deletes a batch and all of its documents
	Remove(id string) error
}

// LocalStorage implements the Storage interface with one directory per batch
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) dir(id string) string {
	return filepath.Join(l.basePath, id)
}

// Create makes the batch directory; it fails if the batch already exists
func (l *LocalStorage) Create(id string) error {
	if err := os.Mkdir(l.dir(id), 0755); err != nil {
		return fmt.Errorf("creating batch directory: %w", err)
	}
	return nil
}

// Save writes a document into the batch directory
func (l *LocalStorage) Save(id string, filename string, data []byte) (string, error) {
	path := filepath.Join(l.dir(id), filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// Documents lists supported documents sorted by name. Stored names carry an
// ordinal prefix, so name order is upload order.
func (l *LocalStorage) Documents(id string) ([]string, error) {
	entries, err := os.ReadDir(l.dir(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("listing batch: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !scanning.IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(l.dir(id), e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Exists reports whether the batch directory exists
func (l *LocalStorage) Exists(id string) bool {
	info, err := os.Stat(l.dir(id))
	return err == nil && info.IsDir()
}

// Remove deletes the batch directory
func (l *LocalStorage) Remove(id string) error {
	if err := os.RemoveAll(l.dir(id)); err != nil {
		return fmt.Errorf("deleting batch: %w", err)
	}
	return nil
}

// ReportFiles serves generated reports from the shared reports directory
type ReportFiles struct {
	dir string
}

// NewReportFiles creates a ReportFiles reading from dir
func NewReportFiles(dir string) *ReportFiles {
	return &ReportFiles{dir: dir}
}

// Open opens a report by its base file name
func (r *ReportFiles) Open(name string) (*os.File, fs.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return nil, nil, fmt.Errorf("%w: %q", ErrReportNotFound, name)
	}

	f, err := os.Open(filepath.Join(r.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %q", ErrReportNotFound, name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening report: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("reading report info: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %q", ErrReportNotFound, name)
	}
	return f, info, nil
}
