package batch

import (
	"time"

	"github.com/zombor/receipt-matcher/internal/matching"
	"github.com/zombor/receipt-matcher/internal/statement"
)

// Status is what happened to one receipt in a batch
type Status string

const (
	// StatusMatched receipts are in the archive
	StatusMatched Status = "matched"
	// StatusUnmatched receipts had no matching transaction
	StatusUnmatched Status = "unmatched"
	// StatusSkipped receipts could not be read
	StatusSkipped Status = "skipped"
)

// Upload is one receipt file as received
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Request describes a batch to process
type Request struct {
	StatementName string
	Statement     []byte
	Columns       statement.Columns
	Options       matching.Options
	Receipts      []Upload
}

// Outcome records the result for a single receipt
type Outcome struct {
	Receipt           string `json:"receipt"`
	Status            Status `json:"status"`
	TransactionNumber string `json:"transaction_number,omitempty"`
	Vendor            string `json:"vendor,omitempty"`
	Score             int    `json:"score"`
	OutputName        string `json:"output_name,omitempty"`
	Warning           string `json:"warning,omitempty"`
}

// Batch is one statement plus its receipts, processed together
type Batch struct {
	ID            string            `json:"id"`
	StatementName string            `json:"statement_name"`
	Columns       statement.Columns `json:"columns"` // columns actually used
	Options       matching.Options  `json:"options"`
	Transactions  int               `json:"transactions"`
	Outcomes      []Outcome         `json:"outcomes"`
	Matched       int               `json:"matched"`
	Unmatched     int               `json:"unmatched"`
	Skipped       int               `json:"skipped"`
	ArchivePath   string            `json:"archive_path,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (b *Batch) record(o Outcome) {
	b.Outcomes = append(b.Outcomes, o)
	switch o.Status {
	case StatusMatched:
		b.Matched++
	case StatusUnmatched:
		b.Unmatched++
	case StatusSkipped:
		b.Skipped++
	}
}
