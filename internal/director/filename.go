package director

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxFilenameLen = 50

var (
	nonWordChars = regexp.MustCompile(`[^A-Za-z0-9_\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns free text into an ASCII file stem: diacritics removed,
// punctuation dropped, whitespace runs replaced by "_", lower-cased, at most 50 bytes.
func SanitizeFilename(text string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), text)
	if err != nil {
		stripped = text
	}
	// đ/Đ have no decomposition.
	stripped = strings.NewReplacer("đ", "d", "Đ", "D").Replace(stripped)

	out := nonWordChars.ReplaceAllString(stripped, "")
	out = whitespace.ReplaceAllString(strings.TrimSpace(out), "_")
	out = strings.ToLower(out)
	if len(out) > maxFilenameLen {
		out = out[:maxFilenameLen]
	}
	return out
}

// ExportFilename is the download name of a script export.
func ExportFilename(title string) string {
	stem := SanitizeFilename(title)
	if stem == "" {
		stem = "production"
	}
	return stem + "_script.json"
}

// ThumbnailFilename is the download name of a thumbnail, named after its overlay text.
func ThumbnailFilename(text string) string {
	stem := SanitizeFilename(text)
	if stem == "" {
		stem = "thumbnail"
	}
	return stem + ".png"
}
