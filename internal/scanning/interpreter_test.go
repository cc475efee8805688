package scanning

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

// mockCompleter is a mock implementation of Completer
type mockCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockCompleter) Close() error {
	return nil
}

var _ = Describe("LLMInterpreter", func() {
	var (
		completer   *mockCompleter
		interpreter *LLMInterpreter
		result      Interpretation
	)

	BeforeEach(func() {
		completer = &mockCompleter{}
		interpreter = NewInterpreter(completer)
	})

	JustBeforeEach(func() {
		result = interpreter.Interpret(context.Background(), "Apellido y nombre: PEREZ JUAN")
	})

	When("the model returns valid JSON", func() {
		BeforeEach(func() {
			completer.reply = `{"recibos": [{"nombre": "Juan", "apellido": "Perez", "sueldo": 150000}]}`
		})

		It("should return the records", func() {
			Expect(result.Records).To(HaveLen(1))
			Expect(result.Records[0].IsError()).To(BeFalse())
			Expect(result.Records[0].LastName).To(Equal("Perez"))
		})

		It("should embed the page text in the prompt", func() {
			Expect(completer.prompts).To(HaveLen(1))
			Expect(completer.prompts[0]).To(ContainSubstring("Apellido y nombre: PEREZ JUAN"))
			Expect(completer.prompts[0]).NotTo(ContainSubstring("{{TEXT}}"))
		})
	})

	When("the model call fails", func() {
		BeforeEach(func() {
			completer.err = errors.New("connection refused")
		})

		It("should return a single error record", func() {
			Expect(result.Records).To(HaveLen(1))
			rec := result.Records[0]
			Expect(rec.IsError()).To(BeTrue())
			Expect(rec.FirstName).To(Equal(ErrorName))
			Expect(rec.LastName).To(Equal(ErrorName))
			Expect(rec.Salary.Equal(decimal.Zero)).To(BeTrue())
			Expect(rec.Error).To(ContainSubstring("connection refused"))
		})
	})

	When("the model returns something other than JSON", func() {
		BeforeEach(func() {
			completer.reply = "Lo siento, no puedo ayudarte con eso."
		})

		It("should return a single error record", func() {
			Expect(result.Records).To(HaveLen(1))
			Expect(result.Records[0].IsError()).To(BeTrue())
		})
	})

	When("the model finds no receipts", func() {
		BeforeEach(func() {
			completer.reply = `{"recibos": []}`
		})

		It("should return no records", func() {
			Expect(result.Records).To(BeEmpty())
		})
	})
})
