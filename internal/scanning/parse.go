package scanning

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousandsDots   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	thousandsCommas = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
)

type rawRecord struct {
	FirstName string          `json:"nombre"`
	LastName  string          `json:"apellido"`
	Salary    json.RawMessage `json:"sueldo"`
}

type rawInterpretation struct {
	Records []rawRecord `json:"recibos"`
}

// parseInterpretation parses the JSON reply of a language model
func parseInterpretation(text string) (Interpretation, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return Interpretation{}, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return Interpretation{}, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw rawInterpretation
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Interpretation{}, fmt.Errorf("unmarshaling json: %w", err)
	}

	result := Interpretation{Records: make([]Record, 0, len(raw.Records))}
	for i, r := range raw.Records {
		first := strings.TrimSpace(r.FirstName)
		last := strings.TrimSpace(r.LastName)
		if first == "" && last == "" {
			continue
		}
		rec := Record{FirstName: first, LastName: last}
		salary, err := parseAmount(r.Salary)
		if err != nil {
			// Keep the employee with a zero salary; the rest of the page is still good
			slog.Warn("Unreadable salary in receipt", "record", i, "error", err)
			salary = decimal.Zero
			rec.Error = err.Error()
		}
		rec.Salary = salary
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// parseAmount accepts a JSON number, null, or a string written with
// either Argentine ("$ 150.000,50") or US ("150,000.50") separators.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, nil
	}
	if !strings.HasPrefix(s, `"`) {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %s: %w", s, err)
		}
		return d, nil
	}

	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %s: %w", raw, err)
	}
	s = strings.NewReplacer("$", "", "ARS", "", " ", "", "\u00a0", "").Replace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if thousandsCommas.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dot >= 0:
		if thousandsDots.MatchString(s) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(sign + s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", sign+s, err)
	}
	return d, nil
}
