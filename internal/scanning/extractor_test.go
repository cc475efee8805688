package scanning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockDocument is a mock implementation of Document
type mockDocument struct {
	pages     int
	renderErr map[int]error
	closed    bool
}

func (m *mockDocument) NumPage() int {
	return m.pages
}

func (m *mockDocument) ImagePNG(pageNumber int, dpi float64) ([]byte, error) {
	if err, ok := m.renderErr[pageNumber]; ok {
		return nil, err
	}
	return []byte(fmt.Sprintf("page-%d", pageNumber)), nil
}

func (m *mockDocument) Close() error {
	m.closed = true
	return nil
}

// mockRecognizer returns the page image bytes as text unless told otherwise
type mockRecognizer struct {
	texts map[string]string
	errs  map[string]error
	calls int
}

func (m *mockRecognizer) Recognize(ctx context.Context, pngData []byte) (string, error) {
	m.calls++
	key := string(pngData)
	if err, ok := m.errs[key]; ok {
		return "", err
	}
	if text, ok := m.texts[key]; ok {
		return text, nil
	}
	return "text of " + key, nil
}

func collectPages(e *Extractor, ctx context.Context, path string) ([]Page, []error) {
	var pages []Page
	var errs []error
	for page, err := range e.Pages(ctx, path) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pages = append(pages, page)
	}
	return pages, errs
}

var _ = Describe("Extractor", func() {
	var (
		doc        *mockDocument
		openErr    error
		recognizer *mockRecognizer
		extractor  *Extractor
		opened     int
	)

	BeforeEach(func() {
		doc = &mockDocument{pages: 3, renderErr: map[int]error{}}
		openErr = nil
		opened = 0
		recognizer = &mockRecognizer{texts: map[string]string{}, errs: map[string]error{}}
		extractor = NewExtractorWithOpener(func(path string) (Document, error) {
			opened++
			if openErr != nil {
				return nil, openErr
			}
			return doc, nil
		}, recognizer, 0)
	})

	Describe("Pages", func() {
		When("every page succeeds", func() {
			It("should yield one page per document page in order, 1-indexed", func() {
				pages, errs := collectPages(extractor, context.Background(), "/batch/000_recibos.pdf")
				Expect(errs).To(BeEmpty())
				Expect(pages).To(HaveLen(3))
				for i, page := range pages {
					Expect(page.Index).To(Equal(i + 1))
					Expect(page.Document).To(Equal("000_recibos.pdf"))
					Expect(page.Text).To(Equal(fmt.Sprintf("text of page-%d", i)))
					Expect(page.Usable()).To(BeTrue())
				}
			})

			It("should close the document", func() {
				collectPages(extractor, context.Background(), "doc.pdf")
				Expect(doc.closed).To(BeTrue())
			})

			It("should not open the document until iterated", func() {
				extractor.Pages(context.Background(), "doc.pdf")
				Expect(opened).To(Equal(0))
			})
		})

		When("a page fails to render", func() {
			BeforeEach(func() {
				doc.renderErr[1] = errors.New("broken xref")
			})

			It("should yield a sentinel page and continue", func() {
				pages, errs := collectPages(extractor, context.Background(), "doc.pdf")
				Expect(errs).To(BeEmpty())
				Expect(pages).To(HaveLen(3))
				Expect(pages[1].Usable()).To(BeFalse())
				Expect(pages[1].Err).To(MatchError(ErrPageFailed))
				Expect(pages[1].Text).To(HavePrefix("ERROR_PROCESANDO_PAGINA_2: "))
				Expect(pages[1].Text).To(ContainSubstring("broken xref"))
				Expect(pages[2].Usable()).To(BeTrue())
			})
		})

		When("OCR fails on a page", func() {
			BeforeEach(func() {
				doc.pages = 1
				recognizer.errs["page-0"] = errors.New("tesseract crashed")
			})

			It("should yield a sentinel page", func() {
				pages, _ := collectPages(extractor, context.Background(), "doc.pdf")
				Expect(pages).To(HaveLen(1))
				Expect(pages[0].Usable()).To(BeFalse())
				Expect(pages[0].Text).To(ContainSubstring("tesseract crashed"))
			})
		})

		When("a page has no text", func() {
			BeforeEach(func() {
				doc.pages = 1
				recognizer.texts["page-0"] = "  \n "
			})

			It("should yield the page as not usable", func() {
				pages, errs := collectPages(extractor, context.Background(), "doc.pdf")
				Expect(errs).To(BeEmpty())
				Expect(pages).To(HaveLen(1))
				Expect(pages[0].Err).NotTo(HaveOccurred())
				Expect(pages[0].Usable()).To(BeFalse())
			})
		})

		When("the document cannot be opened", func() {
			BeforeEach(func() {
				openErr = errors.New("not a PDF")
			})

			It("should yield a single unreadable document error", func() {
				pages, errs := collectPages(extractor, context.Background(), "doc.pdf")
				Expect(pages).To(BeEmpty())
				Expect(errs).To(HaveLen(1))
				Expect(errs[0]).To(MatchError(ErrDocumentUnreadable))
				Expect(errs[0].Error()).To(ContainSubstring("doc.pdf"))
			})
		})

		When("the document has no pages", func() {
			BeforeEach(func() {
				doc.pages = 0
			})

			It("should yield nothing", func() {
				pages, errs := collectPages(extractor, context.Background(), "doc.pdf")
				Expect(pages).To(BeEmpty())
				Expect(errs).To(BeEmpty())
				Expect(doc.closed).To(BeTrue())
			})
		})

		When("the consumer stops early", func() {
			It("should close the document and stop running OCR", func() {
				for range extractor.Pages(context.Background(), "doc.pdf") {
					break
				}
				Expect(doc.closed).To(BeTrue())
				Expect(recognizer.calls).To(Equal(1))
			})
		})

		When("the context is canceled", func() {
			It("should yield the context error and close the document", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				pages, errs := collectPages(extractor, ctx, "doc.pdf")
				Expect(pages).To(BeEmpty())
				Expect(errs).To(ConsistOf(MatchError(context.Canceled)))
				Expect(doc.closed).To(BeTrue())
			})
		})

		When("iterated twice", func() {
			It("should re-open the document and re-run OCR", func() {
				seq := extractor.Pages(context.Background(), "doc.pdf")
				for range seq {
				}
				for range seq {
				}
				Expect(opened).To(Equal(2))
				Expect(recognizer.calls).To(Equal(6))
			})
		})
	})
})

var _ = Describe("OpenDocument", func() {
	When("given an image file", func() {
		It("should open it as a single page PNG document", func() {
			img := image.NewRGBA(image.Rect(0, 0, 4, 4))
			img.Set(1, 1, color.Black)
			var buf bytes.Buffer
			Expect(png.Encode(&buf, img)).To(Succeed())

			path := filepath.Join(GinkgoT().TempDir(), "foto.png")
			Expect(os.WriteFile(path, buf.Bytes(), 0644)).To(Succeed())

			doc, err := OpenDocument(path)
			Expect(err).NotTo(HaveOccurred())
			defer doc.Close()
			Expect(doc.NumPage()).To(Equal(1))

			data, err := doc.ImagePNG(0, DefaultDPI)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(buf.Bytes()))

			_, err = doc.ImagePNG(1, DefaultDPI)
			Expect(err).To(HaveOccurred())
		})
	})

	When("given a corrupt image", func() {
		It("returns the error", func() {
			path := filepath.Join(GinkgoT().TempDir(), "foto.jpg")
			Expect(os.WriteFile(path, []byte("not an image"), 0644)).To(Succeed())
			_, err := OpenDocument(path)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("document types", func() {
	It("should recognize PDFs and images case-insensitively", func() {
		Expect(IsSupported("RECIBO.PDF")).To(BeTrue())
		Expect(IsSupported("foto.HEIC")).To(BeTrue())
		Expect(IsSupported("foto.jpeg")).To(BeTrue())
		Expect(IsSupported("notas.txt")).To(BeFalse())
		Expect(IsSupported("sin-extension")).To(BeFalse())
	})

	It("should detect HEIC magic bytes", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		Expect(isHEICFormat(data)).To(BeTrue())
		Expect(isHEICFormat([]byte(strings.Repeat("x", 12)))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})
