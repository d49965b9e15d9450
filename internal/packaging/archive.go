package packaging

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"
)

// Archive collects output PDFs into an in-memory zip
type Archive struct {
	buf     bytes.Buffer
	zw      *zip.Writer
	names   map[string]int
	entries []string
	now     func() time.Time
}

// NewArchive creates an empty archive
func NewArchive() *Archive {
	a := &Archive{
		names: make(map[string]int),
		now:   time.Now,
	}
	a.zw = zip.NewWriter(&a.buf)
	return a
}

// Add writes a file and returns the entry name actually used. A name that
// is already taken gets " (2)", " (3)", ... before its extension.
func (a *Archive) Add(name string, data []byte) (string, error) {
	entry := a.uniqueName(name)

	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     entry,
		Method:   zip.Deflate,
		Modified: a.now(),
	})
	if err != nil {
		return "", fmt.Errorf("creating zip entry %q: %w", entry, err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("writing zip entry %q: %w", entry, err)
	}

	a.entries = append(a.entries, entry)
	return entry, nil
}

// Entries returns the entry names in the order they were added
func (a *Archive) Entries() []string {
	return append([]string(nil), a.entries...)
}

// Bytes finishes the archive and returns its contents. The archive must not
// be added to afterwards.
func (a *Archive) Bytes() ([]byte, error) {
	if err := a.zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zip: %w", err)
	}
	return a.buf.Bytes(), nil
}

func (a *Archive) uniqueName(name string) string {
	key := strings.ToLower(name)
	a.names[key]++
	n := a.names[key]
	if n == 1 {
		return name
	}

	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
	// "x (2).pdf" may itself have been added as a name
	if _, taken := a.names[strings.ToLower(candidate)]; taken {
		return a.uniqueName(name)
	}
	a.names[strings.ToLower(candidate)] = 1
	return candidate
}
