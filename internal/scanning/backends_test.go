package scanning

import (
	"context"
	"encoding/base64"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		ollama *Ollama
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		ollama, err = NewOllama(server.URL()+"/", "llama3.1", "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Complete", func() {
		When("the server answers", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/api/chat"),
					ghttp.VerifyJSONRepresenting(map[string]any{
						"model":    "llama3.1",
						"stream":   false,
						"format":   "json",
						"options":  map[string]any{"temperature": 0},
						"messages": []map[string]any{{"role": "user", "content": "prompt"}},
					}),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"message": map[string]any{"role": "assistant", "content": `{"recibos": []}`},
						"done":    true,
					}),
				))
			})

			It("should return the message content", func() {
				reply, err := ollama.Complete(context.Background(), "prompt")
				Expect(err).NotTo(HaveOccurred())
				Expect(reply).To(Equal(`{"recibos": []}`))
			})
		})

		When("the server fails", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
			})

			It("returns the error", func() {
				_, err := ollama.Complete(context.Background(), "prompt")
				Expect(err).To(MatchError(ContainSubstring("model not loaded")))
			})
		})
	})

	Describe("Recognize", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"model":   "llava",
					"stream":  false,
					"options": map[string]any{"temperature": 0},
					"messages": []map[string]any{{
						"role":    "user",
						"content": ocrPrompt,
						"images":  []string{base64.StdEncoding.EncodeToString([]byte("png"))},
					}},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message": map[string]any{"role": "assistant", "content": "RECIBO DE HABERES"},
					"done":    true,
				}),
			))
		})

		It("should send the image to the vision model", func() {
			text, err := ollama.Recognize(context.Background(), []byte("png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("RECIBO DE HABERES"))
		})
	})
})

var _ = Describe("Groq", func() {
	var (
		server *ghttp.Server
		groq   *Groq
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		groq, err = NewGroq(server.URL(), "secret", "")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an api key", func() {
		_, err := NewGroq("", "", "")
		Expect(err).To(HaveOccurred())
	})

	When("the server answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer secret"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"model":           "llama-3.1-8b-instant",
					"messages":        []map[string]any{{"role": "user", "content": "prompt"}},
					"temperature":     0,
					"response_format": map[string]any{"type": "json_object"},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"choices": []map[string]any{{
						"message": map[string]any{"role": "assistant", "content": `{"recibos": []}`},
					}},
				}),
			))
		})

		It("should return the first choice", func() {
			reply, err := groq.Complete(context.Background(), "prompt")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(`{"recibos": []}`))
		})
	})

	When("the server returns no choices", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"choices": []any{}}))
		})

		It("returns the error", func() {
			_, err := groq.Complete(context.Background(), "prompt")
			Expect(err).To(HaveOccurred())
		})
	})

	When("the server rejects the key", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, `{"error": "invalid api key"}`))
		})

		It("returns the error with the status", func() {
			_, err := groq.Complete(context.Background(), "prompt")
			Expect(err).To(MatchError(ContainSubstring("401")))
		})
	})

	When("used through the interpreter and the server is unreachable", func() {
		It("should yield an error record rather than failing", func() {
			unreachable, err := NewGroq("http://127.0.0.1:1", "secret", "")
			Expect(err).NotTo(HaveOccurred())
			result := NewInterpreter(unreachable).Interpret(context.Background(), "texto")
			Expect(result.Records).To(HaveLen(1))
			Expect(result.Records[0].IsError()).To(BeTrue())
		})
	})
})

var _ = Describe("Gemini", func() {
	Describe("NewGemini", func() {
		When("an API key is given", func() {
			var gemini *Gemini

			BeforeEach(func() {
				var err error
				gemini, err = NewGemini("test-key", "")
				Expect(err).NotTo(HaveOccurred())
			})

			AfterEach(func() {
				gemini.Close()
			})

			It("should ask the extraction model for deterministic JSON", func() {
				Expect(gemini.model.Temperature).NotTo(BeNil())
				Expect(*gemini.model.Temperature).To(BeZero())
				Expect(gemini.model.ResponseMIMEType).To(Equal("application/json"))
			})

			It("should keep OCR deterministic plain text", func() {
				Expect(gemini.vision.Temperature).NotTo(BeNil())
				Expect(*gemini.vision.Temperature).To(BeZero())
				Expect(gemini.vision.ResponseMIMEType).To(BeEmpty())
			})
		})

		When("the API key is missing", func() {
			It("returns an error", func() {
				_, err := NewGemini("", "")
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
