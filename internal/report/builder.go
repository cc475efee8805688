// Package report renders accumulated payroll records into an xlsx workbook.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/payroll-scanner/internal/scanning"
)

// Months holds the Spanish month names used for sheet titles and file names
var Months = [12]string{
	"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
}

// ErrNoRecords is returned when asked to build a report without records
var ErrNoRecords = errors.New("no records to report")

const (
	headerRow    = 3
	firstDataRow = 4
	currencyFmt  = `"$" #,##0.00`
)

// Artifact is a generated workbook
type Artifact struct {
	Path  string `json:"path"`
	Month string `json:"month"`
	Year  int    `json:"year"`
}

// Filename returns the base name of the workbook
func (a Artifact) Filename() string {
	return filepath.Base(a.Path)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Builder writes payroll workbooks into a shared reports directory
type Builder struct {
	dir        string
	timeSource TimeSource
}

// NewBuilder creates a Builder writing into dir, creating it if needed
func NewBuilder(dir string) (*Builder, error) {
	return NewBuilderWithTime(dir, defaultTimeSource{})
}

// NewBuilderWithTime creates a Builder with a custom time source for testing
func NewBuilderWithTime(dir string, timeSource TimeSource) (*Builder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating reports directory: %w", err)
	}
	return &Builder{dir: dir, timeSource: timeSource}, nil
}

// Dir returns the directory reports are written to
func (b *Builder) Dir() string {
	return b.dir
}

// Build writes one workbook for the records. Each call produces a new file
// whose name embeds the period and a microsecond timestamp.
func (b *Builder) Build(records []scanning.Record) (Artifact, error) {
	if len(records) == 0 {
		return Artifact{}, ErrNoRecords
	}

	now := b.timeSource.Now()
	artifact := Artifact{
		Month: Months[now.Month()-1],
		Year:  now.Year(),
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, artifact, records); err != nil {
		return Artifact{}, fmt.Errorf("writing sheet: %w", err)
	}

	path, err := b.reserve(artifact, now)
	if err != nil {
		return Artifact{}, err
	}
	if err := f.SaveAs(path); err != nil {
		os.Remove(path)
		return Artifact{}, fmt.Errorf("saving workbook: %w", err)
	}
	artifact.Path = path

	slog.Info("Report generated", "path", path, "records", len(records))
	return artifact, nil
}

// reserve creates an empty file with a unique name so concurrent builds never collide
func (b *Builder) reserve(artifact Artifact, now time.Time) (string, error) {
	stamp := strings.Replace(now.Format("150405.000000"), ".", "_", 1)
	base := fmt.Sprintf("Reporte_Sueldos_%s_%d_%s", artifact.Month, artifact.Year, stamp)

	for i := 0; i < 100; i++ {
		name := base + ".xlsx"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.xlsx", base, i)
		}
		path := filepath.Join(b.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating report file: %w", err)
		}
		f.Close()
		return path, nil
	}
	return "", fmt.Errorf("no free report file name for %s", base)
}
