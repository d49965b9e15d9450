package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-matcher/internal/matching"
	"github.com/zombor/receipt-matcher/internal/packaging"
	"github.com/zombor/receipt-matcher/internal/scanning"
	"github.com/zombor/receipt-matcher/internal/statement"
)

// IDGenerator generates unique IDs for batches
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service matches receipts against statements
type Service struct {
	db          DB
	recognizer  scanning.Recognizer
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
	pdfText     bool
}

// NewService creates a new Service with default ID generator and time source.
// db and storage may be nil when only Process is used.
func NewService(db DB, recognizer scanning.Recognizer, storage Storage) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer scanning.Recognizer, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// UsePDFText makes the service read a PDF receipt's embedded text instead of
// running OCR when the first page has any
func (s *Service) UsePDFText(enabled bool) {
	s.pdfText = enabled
}

// IsStatementError reports whether err means the statement itself is unusable
func IsStatementError(err error) bool {
	return errors.Is(err, statement.ErrVendorColumnNotFound) ||
		errors.Is(err, statement.ErrColumnNotFound) ||
		errors.Is(err, statement.ErrEmptyStatement) ||
		errors.Is(err, statement.ErrMalformedStatement) ||
		errors.Is(err, statement.ErrAmountColumnRequired)
}

// Process runs a batch and returns its record and the zip archive of
// matched receipts. Receipts are handled one at a time, in order; a receipt
// that cannot be read is skipped and the rest still run.
func (s *Service) Process(ctx context.Context, req Request) (*Batch, []byte, error) {
	stmt, err := statement.Parse(bytes.NewReader(req.Statement), req.Columns)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing statement: %w", err)
	}

	matcher := matching.NewMatcher(req.Options)
	if matcher.Options().Mode == matching.ModeAmount {
		if err := stmt.RequireAmount(); err != nil {
			return nil, nil, err
		}
	}

	b := &Batch{
		ID:            s.idGenerator.Generate(),
		StatementName: req.StatementName,
		Columns: statement.Columns{
			Vendor: stmt.VendorColumn,
			Number: stmt.NumberColumn,
			Amount: stmt.AmountColumn,
		},
		Options:      matcher.Options(),
		Transactions: len(stmt.Transactions),
		Outcomes:     make([]Outcome, 0, len(req.Receipts)),
		CreatedAt:    s.timeSource.Now(),
	}

	archive := packaging.NewArchive()
	for _, upload := range req.Receipts {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		outcome, err := s.processReceipt(ctx, matcher, stmt, archive, upload)
		if err != nil {
			return nil, nil, err
		}
		b.record(outcome)
	}

	data, err := archive.Bytes()
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Processed batch",
		"id", b.ID,
		"receipts", len(req.Receipts),
		"matched", b.Matched,
		"unmatched", b.Unmatched,
		"skipped", b.Skipped,
	)
	return b, data, nil
}

// processReceipt only returns an error when the archive itself fails
func (s *Service) processReceipt(ctx context.Context, matcher *matching.Matcher, stmt *statement.Statement, archive *packaging.Archive, upload Upload) (Outcome, error) {
	outcome := Outcome{Receipt: upload.Filename}
	contentType := scanning.DetectContentType(upload.Filename, upload.ContentType, upload.Data)

	skip := func(reason string, err error) (Outcome, error) {
		slog.Warn(reason,
			"filename", upload.Filename,
			"content_type", contentType,
			"file_size", len(upload.Data),
			"error", err,
		)
		outcome.Status = StatusSkipped
		outcome.Warning = fmt.Sprintf("%s: %v", reason, err)
		return outcome, nil
	}

	img, err := scanning.Decode(upload.Data, contentType)
	if err != nil {
		return skip("Failed to convert receipt", err)
	}

	text, err := s.readText(ctx, upload.Data, contentType, img)
	if err != nil {
		return skip("Failed to read receipt text", err)
	}

	result := matcher.Match(stmt.Transactions, strings.ToLower(text))
	if !result.Matched() {
		slog.Debug("No match for receipt", "filename", upload.Filename)
		outcome.Status = StatusUnmatched
		return outcome, nil
	}

	tx := result.Transaction
	outcome.TransactionNumber = tx.Number
	outcome.Vendor = tx.Vendor
	outcome.Score = result.Score

	pdf, err := packaging.RenderPDF(img)
	if err != nil {
		return skip("Failed to render receipt PDF", err)
	}

	entry, err := archive.Add(packaging.FileName(tx.Number, tx.Vendor), pdf)
	if err != nil {
		return outcome, fmt.Errorf("adding %s to archive: %w", upload.Filename, err)
	}

	outcome.Status = StatusMatched
	outcome.OutputName = entry
	return outcome, nil
}

// readText prefers a PDF's own text layer when enabled, falling back to OCR
func (s *Service) readText(ctx context.Context, data []byte, contentType string, img image.Image) (string, error) {
	if s.pdfText && contentType == "application/pdf" {
		text, err := scanning.PDFText(data)
		if err != nil {
			slog.Debug("No usable PDF text layer", "error", err)
		} else if text != "" {
			return text, nil
		}
	}

	pngData, err := scanning.EncodePNG(img)
	if err != nil {
		return "", err
	}
	return s.recognizer.Recognize(ctx, pngData)
}

// Run processes a batch, stores its archive and records it in the history
func (s *Service) Run(ctx context.Context, req Request) (*Batch, error) {
	b, data, err := s.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	path, err := s.storage.Save(b.ID+".zip", data)
	if err != nil {
		return nil, fmt.Errorf("saving archive: %w", err)
	}
	b.ArchivePath = path

	if err := s.db.SaveBatch(b); err != nil {
		// Clean up archive if database save fails
		s.storage.Delete(path)
		return nil, fmt.Errorf("saving batch to database: %w", err)
	}
	return b, nil
}

// DetectColumns reports a statement's headers and the columns that would be
// picked automatically
func (s *Service) DetectColumns(data []byte) (*statement.Detection, error) {
	detection, err := statement.DetectColumns(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading statement header: %w", err)
	}
	return detection, nil
}

// GetBatch retrieves a batch by ID
func (s *Service) GetBatch(id string) (*Batch, error) {
	b, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	return b, nil
}

// ListBatches returns all batches, newest first
func (s *Service) ListBatches() ([]*Batch, error) {
	batches, err := s.db.ListBatches()
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	return batches, nil
}

// GetArchive returns the zip archive of a batch
func (s *Service) GetArchive(id string) ([]byte, error) {
	b, err := s.db.GetBatch(id)
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}

	data, err := s.storage.Get(b.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("getting archive: %w", err)
	}
	return data, nil
}

// DeleteBatch removes a batch and its archive
func (s *Service) DeleteBatch(id string) error {
	b, err := s.db.GetBatch(id)
	if err != nil {
		return fmt.Errorf("getting batch for deletion: %w", err)
	}

	if err := s.storage.Delete(b.ArchivePath); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete archive", "path", b.ArchivePath, "error", err)
	}

	if err := s.db.DeleteBatch(id); err != nil {
		return fmt.Errorf("deleting batch from database: %w", err)
	}
	return nil
}
