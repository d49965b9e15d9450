// Package packaging turns matched receipts into named single-page PDFs and
// bundles them into a zip archive.
package packaging

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ArchiveName is the download name of a batch archive
const ArchiveName = "renamed_receipts.zip"

const numberWidth = 2

var unsafeNameChars = strings.NewReplacer("/", "-", "\\", "-", ":", "-", "\x00", "")

// FileName builds "<zero-padded number> - <Title Case vendor>.pdf"
func FileName(number, vendor string) string {
	name := ZeroPad(strings.TrimSpace(number), numberWidth) + " - " + TitleCase(vendor)
	return unsafeNameChars.Replace(name) + ".pdf"
}

// ZeroPad left-pads s with zeros to width, keeping a leading sign in front
func ZeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	return sign + strings.Repeat("0", width-len(sign)-len(s)) + s
}

// TitleCase capitalizes the first letter of every word
func TitleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}
