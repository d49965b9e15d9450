package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/receipt-matcher/internal/batch"
	"github.com/zombor/receipt-matcher/internal/matching"
	"github.com/zombor/receipt-matcher/internal/packaging"
	"github.com/zombor/receipt-matcher/internal/scanning"
	"github.com/zombor/receipt-matcher/internal/statement"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-matcher")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "receipt-matcher.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./archives", "Archive storage directory path")
		ocrType       = fs.StringLong("ocr", "tesseract", "Text recognizer: 'tesseract', 'gemini' or 'ollama'")
		tesseractLang = fs.StringLong("tesseract-lang", "eng", "Tesseract languages, joined with '+' (e.g., eng+spa)")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		pdfText       = fs.BoolLong("pdf-text", "Use a PDF receipt's embedded text instead of OCR when present")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		statementPath = fs.StringLong("statement", "", "Statement CSV; when set, match the receipt arguments and exit")
		outputPath    = fs.StringLong("output", packaging.ArchiveName, "Zip archive to write in statement mode")
		vendorColumn  = fs.StringLong("vendor-column", "", "Statement vendor column (detected when empty)")
		numberColumn  = fs.StringLong("number-column", "", "Statement transaction number column (detected when empty)")
		amountColumn  = fs.StringLong("amount-column", "", "Statement amount column (detected when empty)")
		mode          = fs.StringLong("mode", string(matching.ModeVendor), "Match mode: 'vendor' or 'amount'")
		minScore      = fs.IntLong("min-score", 0, "Minimum vendor score a match must beat (0-100)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_MATCHER"),
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

	matchMode, err := matching.ParseMode(*mode)
	if err != nil {
		slog.Error("Invalid match mode", "error", err)
		os.Exit(1)
	}
	if *minScore < 0 || *minScore > 100 {
		slog.Error("Invalid minimum score", "min-score", *minScore, "valid", "0 to 100")
		os.Exit(1)
	}
	options := matching.DefaultOptions()
	options.Mode = matchMode
	options.MinScore = *minScore

	// Initialize recognizer based on type
	var recognizer scanning.Recognizer
	switch *ocrType {
	case "tesseract":
		slog.Info("Initializing Tesseract recognizer...", "languages", *tesseractLang)
		recognizer = scanning.NewTesseract(strings.Split(*tesseractLang, "+")...)
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini recognizer...", "model", *geminiModel)
		recognizer, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", *ollamaURL, "model", *ollamaModel)
		recognizer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid OCR type", "type", *ocrType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}
	defer recognizer.Close()

	columns := statement.Columns{
		Vendor: *vendorColumn,
		Number: *numberColumn,
		Amount: *amountColumn,
	}

	if *statementPath != "" {
		service := batch.NewService(nil, recognizer, nil)
		service.UsePDFText(*pdfText)
		if err := runOnce(service, *statementPath, fs.GetArgs(), columns, options, *outputPath); err != nil {
			slog.Error("Batch failed", "error", err)
			recognizer.Close()
			os.Exit(1)
		}
		return
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := batch.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := batch.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	service := batch.NewService(db, recognizer, store)
	service.UsePDFText(*pdfText)

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

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if basicAuth.Enabled() {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// runOnce matches the receipt files against one statement and writes the archive
func runOnce(service *batch.Service, statementPath string, receiptPaths []string, columns statement.Columns, options matching.Options, outputPath string) error {
	if len(receiptPaths) == 0 {
		return fmt.Errorf("no receipt files given")
	}

	data, err := os.ReadFile(statementPath)
	if err != nil {
		return fmt.Errorf("reading statement: %w", err)
	}

	req := batch.Request{
		StatementName: filepath.Base(statementPath),
		Statement:     data,
		Columns:       columns,
		Options:       options,
	}
	for _, path := range receiptPaths {
		receipt, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading receipt: %w", err)
		}
		req.Receipts = append(req.Receipts, batch.Upload{
			Filename: filepath.Base(path),
			Data:     receipt,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, archive, err := service.Process(ctx, req)
	if err != nil {
		return err
	}

	for _, outcome := range b.Outcomes {
		switch outcome.Status {
		case batch.StatusMatched:
			slog.Info("Matched receipt", "receipt", outcome.Receipt, "transaction", outcome.TransactionNumber, "vendor", outcome.Vendor, "score", outcome.Score, "output", outcome.OutputName)
		case batch.StatusUnmatched:
			slog.Warn("No match found", "receipt", outcome.Receipt)
		default:
			slog.Warn("Skipped receipt", "receipt", outcome.Receipt, "reason", outcome.Warning)
		}
	}

	if err := os.WriteFile(outputPath, archive, 0644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	slog.Info("Wrote archive", "path", outputPath, "matched", b.Matched, "unmatched", b.Unmatched, "skipped", b.Skipped)
	return nil
}
