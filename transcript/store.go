package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const separator = "========================================"

// Store writes finished notes as plain text files.
type Store struct {
	Dir string
	Now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir, Now: time.Now}
}

// DefaultDir is <user config dir>/localnotes/transcripts.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "localnotes", "transcripts"), nil
}

// Save writes one file named <timestamp>_<use-case>.txt and returns its path.
func (s *Store) Save(useCase, transcriptText, summary string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("creating transcripts dir: %w", err)
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	name := fmt.Sprintf("%s_%s.txt", now.Format("2006-01-02_15-04-05"), Slug(useCase))
	path := filepath.Join(s.Dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "Use Case: %s\n", useCase)
	fmt.Fprintf(&b, "Date: %s\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString(separator + "\n\n")
	b.WriteString("TRANSCRIPT:\n")
	b.WriteString(transcriptText + "\n\n")
	b.WriteString(separator + "\n\n")
	b.WriteString("SUMMARY:\n")
	b.WriteString(summary + "\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	return path, nil
}

// Slug lowercases label and replaces runs of non-alphanumerics with "-".
func Slug(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "notes"
	}
	return slug
}
