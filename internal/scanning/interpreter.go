package scanning

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// LLMInterpreter implements Interpreter on top of any Completer
type LLMInterpreter struct {
	completer Completer
}

// NewInterpreter creates an Interpreter backed by the given language model client
func NewInterpreter(completer Completer) *LLMInterpreter {
	return &LLMInterpreter{completer: completer}
}

// Interpret asks the language model for the receipts on a page. Any failure
// (transport, empty reply, malformed JSON) yields a single error record.
func (i *LLMInterpreter) Interpret(ctx context.Context, pageText string) Interpretation {
	reply, err := i.completer.Complete(ctx, payrollPrompt(pageText))
	if err != nil {
		slog.Warn("Receipt extraction call failed", "error", err)
		return errorInterpretation(err)
	}

	result, err := parseInterpretation(reply)
	if err != nil {
		slog.Warn("Receipt extraction returned unusable output", "error", err, "reply_size", len(reply))
		return errorInterpretation(err)
	}
	return result
}

func errorInterpretation(err error) Interpretation {
	return Interpretation{Records: []Record{{
		FirstName: ErrorName,
		LastName:  ErrorName,
		Salary:    decimal.Zero,
		Error:     err.Error(),
	}}}
}
