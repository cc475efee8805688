package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/payroll-scanner/internal/notify"
	"github.com/zombor/payroll-scanner/internal/scanning"
)

// errClientGone is returned when a progress event cannot be delivered
var errClientGone = errors.New("client disconnected")

// Run is a single processing pass over one batch
type Run struct {
	service *Service
	id      string
	state   State
}

// ID returns the batch ID
func (r *Run) ID() string {
	return r.id
}

// State returns the current lifecycle state
func (r *Run) State() State {
	return r.state
}

func (r *Run) transition(to State) {
	slog.Info("Batch state changed", "batch_id", r.id, "from", r.state, "to", to)
	r.state = to
}

// Execute processes every page of every document, emitting progress as it
// goes, then exactly one terminal event. The batch is removed afterwards on
// every path, including panics. It returns the terminal state reached
// before cleanup.
func (r *Run) Execute(ctx context.Context, emit Emitter) State {
	defer r.cleanup()

	final, state := r.process(ctx, emit)
	r.transition(state)

	if err := emit(final); err != nil {
		slog.Warn("Failed to deliver terminal event", "batch_id", r.id, "status", final.Status, "error", err)
	}
	return state
}

func (r *Run) cleanup() {
	if err := r.service.storage.Remove(r.id); err != nil {
		slog.Error("Failed to remove batch", "batch_id", r.id, "error", err)
	}
	r.service.release(r.id)
	r.transition(StateCleanedUp)
}

// process runs the pipeline and returns the terminal event without emitting it
func (r *Run) process(ctx context.Context, emit Emitter) (final Event, state State) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Batch processing panicked", "batch_id", r.id, "panic", p)
			final, state = errorEvent(fmt.Sprint(p)), StateFailed
		}
	}()

	records, err := r.collect(ctx, emit)
	if err != nil {
		slog.Error("Batch processing failed", "batch_id", r.id, "error", err)
		return errorEvent(err.Error()), StateFailed
	}

	if len(records) == 0 {
		slog.Info("Batch produced no receipts", "batch_id", r.id)
		return errorEvent(msgNoReceipts), StateEmpty
	}

	if err := emit(progressEvent(msgGenerating)); err != nil {
		return errorEvent(errClientGone.Error()), StateFailed
	}

	artifact, err := r.service.builder.Build(records)
	if err != nil {
		slog.Error("Failed to generate report", "batch_id", r.id, "error", err)
		return errorEvent(msgReportError), StateFailed
	}

	job := notify.Job{Path: artifact.Path, Month: artifact.Month, Year: artifact.Year}
	if !r.service.notifier.Enqueue(job) {
		slog.Warn("Report notification not queued", "batch_id", r.id, "path", artifact.Path)
	}

	return Event{
		Status:           StatusComplete,
		Data:             &Result{Records: records},
		DownloadFilename: artifact.Filename(),
	}, StateComplete
}

// collect walks documents and pages in order and accumulates records
func (r *Run) collect(ctx context.Context, emit Emitter) ([]scanning.Record, error) {
	docs, err := r.service.storage.Documents(r.id)
	if err != nil {
		return nil, err
	}
	slog.Info("Processing batch", "batch_id", r.id, "documents", len(docs))

	records := make([]scanning.Record, 0)
	for _, doc := range docs {
		if !r.service.storage.Exists(r.id) {
			return nil, fmt.Errorf("%w: storage of batch %s disappeared", ErrBatchNotFound, r.id)
		}
		name := displayName(doc)

		for page, err := range r.service.pages.Pages(ctx, doc) {
			if errors.Is(err, scanning.ErrDocumentUnreadable) {
				if emitErr := emit(progressEvent(fmt.Sprintf("No se pudo abrir %s, se omite.", name))); emitErr != nil {
					return nil, fmt.Errorf("%w: %w", errClientGone, emitErr)
				}
				continue
			}
			if err != nil {
				return nil, err
			}

			if emitErr := emit(progressEvent(fmt.Sprintf("Procesando %s: Página %d...", name, page.Index))); emitErr != nil {
				return nil, fmt.Errorf("%w: %w", errClientGone, emitErr)
			}
			if !page.Usable() {
				continue
			}

			result := r.service.interpreter.Interpret(ctx, page.Text)
			records = append(records, result.Records...)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
