package scanning

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ErrorName is placed in both name fields of a record produced by a failed interpretation
const ErrorName = "Error"

// Record is a single employee/salary entry extracted from a payroll receipt
type Record struct {
	FirstName string          `json:"nombre"`
	LastName  string          `json:"apellido"`
	Salary    decimal.Decimal `json:"sueldo"`
	Error     string          `json:"error,omitempty"` // Set when the record or its page could not be interpreted
}

// IsError reports whether the record could not be fully interpreted
func (r Record) IsError() bool {
	return r.Error != ""
}

// MarshalJSON writes the salary as a JSON number rather than a quoted string
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FirstName string      `json:"nombre"`
		LastName  string      `json:"apellido"`
		Salary    json.Number `json:"sueldo"`
		Error     string      `json:"error,omitempty"`
	}{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Salary:    json.Number(r.Salary.String()),
		Error:     r.Error,
	})
}

// Interpretation is the normalized result of interpreting one page
type Interpretation struct {
	Records []Record `json:"recibos"`
}

// Interpreter turns the raw text of one page into receipt records.
// Implementations never fail: errors are folded into a single error record.
type Interpreter interface {
	Interpret(ctx context.Context, pageText string) Interpretation
}

// Completer sends a prompt to a language model and returns its raw reply.
// Implementations must ask for deterministic (temperature 0), JSON-only output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Close releases the client
	Close() error
}

// Recognizer performs OCR on a PNG-encoded page image
type Recognizer interface {
	Recognize(ctx context.Context, pngData []byte) (string, error)
}
