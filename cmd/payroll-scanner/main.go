package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/payroll-scanner/internal/batch"
	"github.com/zombor/payroll-scanner/internal/notify"
	"github.com/zombor/payroll-scanner/internal/report"
	"github.com/zombor/payroll-scanner/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// shutdownTimeout bounds how long open streams and queued mail get on exit
const shutdownTimeout = 30 * time.Second

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("payroll-scanner")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		uploadsPath   = fs.StringLong("uploads", "./uploads", "Directory for uploaded batches")
		reportsPath   = fs.StringLong("reports", "./reports", "Directory for generated reports")
		ocrType       = fs.StringLong("ocr", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'")
		ocrLang       = fs.StringLong("ocr-lang", "spa", "Tesseract language")
		dpi           = fs.Float64Long("dpi", scanning.DefaultDPI, "Page render resolution")
		interpType    = fs.StringLong("interpreter", "groq", "Interpreter: 'groq', 'gemini' or 'ollama'")
		groqKey       = fs.StringLong("groq-key", "", "Groq API key (or set GROQ_API_KEY env var)")
		groqModel     = fs.StringLong("groq-model", "llama-3.1-8b-instant", "Groq model name")
		groqURL       = fs.StringLong("groq-url", scanning.DefaultGroqURL, "Groq API base URL")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llama3.1", "Ollama model name for interpretation")
		ollamaVision  = fs.StringLong("ollama-vision-model", "llava", "Ollama model name for OCR")
		mailServer    = fs.StringLong("mail-server", "", "SMTP host (or set MAIL_SERVER env var)")
		mailPort      = fs.IntLong("mail-port", 0, "SMTP port (or set MAIL_PORT env var)")
		mailUser      = fs.StringLong("mail-username", "", "SMTP username (or set MAIL_USERNAME env var)")
		mailPass      = fs.StringLong("mail-password", "", "SMTP password (or set MAIL_PASSWORD env var)")
		mailRecipient = fs.StringLong("mail-recipient", "", "Report recipient (or set MAIL_RECIPIENT env var)")
		queueSize     = fs.IntLong("mail-queue", 16, "Pending report notifications before new ones are dropped")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("PAYROLL_SCANNER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	backends := &backends{
		geminiKey:    envFallback(*geminiKey, "GEMINI_API_KEY"),
		geminiModel:  *geminiModel,
		ollamaURL:    *ollamaURL,
		ollamaModel:  *ollamaModel,
		ollamaVision: *ollamaVision,
	}
	defer backends.Close()

	// Initialize OCR engine
	var ocr scanning.Recognizer
	switch *ocrType {
	case "tesseract":
		slog.Info("Initializing Tesseract OCR...", "lang", *ocrLang)
		ocr = scanning.NewTesseract(*ocrLang)
	case "gemini":
		g, err := backends.Gemini()
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		ocr = g
	case "ollama":
		o, err := backends.Ollama()
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
		ocr = o
	default:
		slog.Error("Invalid OCR engine", "type", *ocrType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}

	// Initialize interpreter
	var completer scanning.Completer
	switch *interpType {
	case "groq":
		slog.Info("Initializing Groq interpreter...", "model", *groqModel)
		g, err := scanning.NewGroq(*groqURL, envFallback(*groqKey, "GROQ_API_KEY"), *groqModel)
		if err != nil {
			slog.Error("Failed to initialize Groq", "error", err)
			os.Exit(1)
		}
		defer g.Close()
		completer = g
	case "gemini":
		g, err := backends.Gemini()
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		completer = g
	case "ollama":
		o, err := backends.Ollama()
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
		completer = o
	default:
		slog.Error("Invalid interpreter", "type", *interpType, "valid", "groq, gemini or ollama")
		os.Exit(1)
	}

	// Initialize storage
	slog.Info("Initializing storage...", "uploads", *uploadsPath, "reports", *reportsPath)
	store, err := batch.NewLocalStorage(*uploadsPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	builder, err := report.NewBuilder(*reportsPath)
	if err != nil {
		slog.Error("Failed to initialize report builder", "error", err)
		os.Exit(1)
	}

	// Initialize notifications
	smtp := notify.SMTPConfig{
		Host:      envFallback(*mailServer, "MAIL_SERVER"),
		Port:      *mailPort,
		Username:  envFallback(*mailUser, "MAIL_USERNAME"),
		Password:  envFallback(*mailPass, "MAIL_PASSWORD"),
		Recipient: envFallback(*mailRecipient, "MAIL_RECIPIENT"),
	}
	if smtp.Port == 0 {
		fmt.Sscanf(os.Getenv("MAIL_PORT"), "%d", &smtp.Port)
	}
	if !smtp.Configured() {
		slog.Warn("SMTP not configured, reports will not be emailed")
	}
	dispatcher := notify.NewDispatcher(notify.NewMailer(smtp), *queueSize)

	// Initialize service
	service := batch.NewService(
		store,
		batch.NewReportFiles(builder.Dir()),
		scanning.NewExtractor(ocr, *dpi),
		scanning.NewInterpreter(completer),
		builder,
		dispatcher,
	)

	// Initialize server
	basicAuth := batch.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := batch.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown", "error", err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		slog.Error("Notification queue not drained", "error", err)
	}
}

// envFallback returns value, or the named environment variable when value is empty
func envFallback(value string, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}

// backends lazily creates model clients so OCR and interpretation can share one
type backends struct {
	geminiKey    string
	geminiModel  string
	ollamaURL    string
	ollamaModel  string
	ollamaVision string

	gemini *scanning.Gemini
	ollama *scanning.Ollama
}

func (b *backends) Gemini() (*scanning.Gemini, error) {
	if b.gemini != nil {
		return b.gemini, nil
	}
	if b.geminiKey == "" {
		return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
	}
	slog.Info("Initializing Gemini...", "model", b.geminiModel)
	g, err := scanning.NewGemini(b.geminiKey, b.geminiModel)
	if err != nil {
		return nil, err
	}
	b.gemini = g
	return g, nil
}

func (b *backends) Ollama() (*scanning.Ollama, error) {
	if b.ollama != nil {
		return b.ollama, nil
	}
	slog.Info("Initializing Ollama...", "url", b.ollamaURL, "model", b.ollamaModel, "vision_model", b.ollamaVision)
	o, err := scanning.NewOllama(b.ollamaURL, b.ollamaModel, b.ollamaVision)
	if err != nil {
		return nil, err
	}
	b.ollama = o
	return o, nil
}

func (b *backends) Close() {
	if b.gemini != nil {
		b.gemini.Close()
	}
	if b.ollama != nil {
		b.ollama.Close()
	}
}
