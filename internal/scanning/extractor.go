package scanning

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PageErrorPrefix marks the text of a page whose rasterization or OCR failed
const PageErrorPrefix = "ERROR_PROCESANDO_PAGINA_"

// DefaultDPI is the resolution pages are rendered at before OCR
const DefaultDPI = 300

var (
	// ErrDocumentUnreadable is yielded when a document cannot be opened at all
	ErrDocumentUnreadable = errors.New("document could not be opened")
	// ErrPageFailed wraps the failure of a single page
	ErrPageFailed = errors.New("page could not be processed")
)

// Page is one page of a document after OCR
type Page struct {
	Document string `json:"document"`
	Index    int    `json:"index"` // 1-based
	Text     string `json:"text"`
	Err      error  `json:"-"`
}

// Usable reports whether the page text is worth sending to an Interpreter
func (p Page) Usable() bool {
	return p.Err == nil && strings.TrimSpace(p.Text) != "" && !strings.HasPrefix(p.Text, PageErrorPrefix)
}

// Document is an open, page-addressable source document
type Document interface {
	NumPage() int
	// ImagePNG renders a zero-based page as PNG
	ImagePNG(pageNumber int, dpi float64) ([]byte, error)
	Close() error
}

// OpenFunc opens a document by path
type OpenFunc func(path string) (Document, error)

// OpenDocument opens PDFs with MuPDF and images as single-page documents
func OpenDocument(path string) (Document, error) {
	if IsImage(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
		pngData, err := imageToPNG(data, path)
		if err != nil {
			return nil, err
		}
		return &imageDocument{png: pngData}, nil
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return doc, nil
}

// imageDocument adapts an already decoded image to the Document interface
type imageDocument struct {
	png []byte
}

func (d *imageDocument) NumPage() int { return 1 }

func (d *imageDocument) ImagePNG(pageNumber int, _ float64) ([]byte, error) {
	if pageNumber != 0 {
		return nil, fmt.Errorf("page %d out of range", pageNumber)
	}
	return d.png, nil
}

func (d *imageDocument) Close() error { return nil }

// Extractor produces the OCR text of every page of a document
type Extractor struct {
	open OpenFunc
	ocr  Recognizer
	dpi  float64
}

// NewExtractor creates an Extractor that opens documents from disk
func NewExtractor(ocr Recognizer, dpi float64) *Extractor {
	return NewExtractorWithOpener(OpenDocument, ocr, dpi)
}

// NewExtractorWithOpener creates an Extractor with a custom document opener for testing
func NewExtractorWithOpener(open OpenFunc, ocr Recognizer, dpi float64) *Extractor {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Extractor{open: open, ocr: ocr, dpi: dpi}
}

// Pages returns a lazy sequence over the pages of the document at path, in
// order. Each iteration opens the document again and re-runs OCR.
//
// A page that fails to render or recognize is yielded with Err set and its
// Text replaced by a PageErrorPrefix sentinel; iteration continues. A
// document that cannot be opened yields a single ErrDocumentUnreadable error.
// Cancellation of ctx yields ctx.Err() and ends the sequence. The document
// is closed when the sequence ends or the consumer stops early.
func (e *Extractor) Pages(ctx context.Context, path string) iter.Seq2[Page, error] {
	name := filepath.Base(path)
	return func(yield func(Page, error) bool) {
		doc, err := e.open(path)
		if err != nil {
			slog.Warn("Failed to open document", "document", name, "error", err)
			yield(Page{Document: name}, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, name, err))
			return
		}
		defer func() {
			if err := doc.Close(); err != nil {
				slog.Warn("Failed to close document", "document", name, "error", err)
			}
		}()

		total := doc.NumPage()
		slog.Info("Document opened", "document", name, "pages", total)

		for i := 0; i < total; i++ {
			if err := ctx.Err(); err != nil {
				yield(Page{Document: name, Index: i + 1}, err)
				return
			}
			if !yield(e.page(ctx, doc, name, i), nil) {
				return
			}
		}
	}
}

func (e *Extractor) page(ctx context.Context, doc Document, name string, i int) Page {
	page := Page{Document: name, Index: i + 1}

	pngData, err := doc.ImagePNG(i, e.dpi)
	if err != nil {
		return failedPage(page, fmt.Errorf("rendering: %w", err))
	}
	text, err := e.ocr.Recognize(ctx, pngData)
	if err != nil {
		return failedPage(page, fmt.Errorf("ocr: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		slog.Info("Page produced no text", "document", name, "page", page.Index)
	}
	page.Text = text
	return page
}

func failedPage(page Page, err error) Page {
	slog.Warn("Failed to process page", "document", page.Document, "page", page.Index, "error", err)
	page.Err = fmt.Errorf("%w: page %d: %w", ErrPageFailed, page.Index, err)
	page.Text = fmt.Sprintf("%s%d: %v", PageErrorPrefix, page.Index, err)
	return page
}
