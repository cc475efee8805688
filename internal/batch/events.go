package batch

import "github.com/zombor/payroll-scanner/internal/scanning"

// State is a step of a batch's lifecycle
type State string

const (
	StateReceiving  State = "RECEIVING"
	StateProcessing State = "PROCESSING"
	StateComplete   State = "COMPLETE"
	StateEmpty      State = "EMPTY"
	StateFailed     State = "FAILED"
	StateCleanedUp  State = "CLEANED_UP"
)

// Event statuses on the wire
const (
	StatusProgress = "progress"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Client-facing messages
const (
	msgNoReceipts  = "No se encontraron recibos legibles en los documentos."
	msgReportError = "Error al generar el archivo Excel."
	msgGenerating  = "Generando reporte de Excel..."
)

// Event is one message of a processing stream
type Event struct {
	Status           string  `json:"status"`
	Message          string  `json:"message,omitempty"`
	Data             *Result `json:"data,omitempty"`
	DownloadFilename string  `json:"download_filename,omitempty"`
}

// Terminal reports whether the event ends the stream
func (e Event) Terminal() bool {
	return e.Status != StatusProgress
}

// Result holds every record accumulated by a batch, in document then page order
type Result struct {
	Records []scanning.Record `json:"recibos"`
}

// Emitter delivers events to the client; an error means the client is gone
type Emitter func(Event) error

func progressEvent(message string) Event {
	return Event{Status: StatusProgress, Message: message}
}

func errorEvent(message string) Event {
	return Event{Status: StatusError, Message: message}
}
