package scanning

import "context"

// Recognizer reads the text printed on a receipt image
type Recognizer interface {
	// Recognize returns the text found in a PNG image
	Recognize(ctx context.Context, pngData []byte) (string, error)
	// Close closes the recognizer and releases resources
	Close() error
}
