// Package security guards the file names the scan tools derive from their
// inputs.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

const maxFilenameLen = 128

// SanitizeFilename makes a safe file stem from an arbitrary string: any
// rune that is not an ASCII letter, digit, dot, underscore or dash becomes
// an underscore, repeats collapse, and the result is capped in length.
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// WithinDirectory reports an error if path, once cleaned, escapes dir.
// The check is lexical so it also holds for in-memory filesystems.
func WithinDirectory(path, dir string) error {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path %s is outside %s: %w", path, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", path, dir)
	}
	return nil
}

// OutputPath builds dir/<sanitized stem><ext> and checks it stays in dir.
func OutputPath(dir, stem, ext string) (string, error) {
	out := filepath.Join(dir, SanitizeFilename(stem)+ext)
	if err := WithinDirectory(out, dir); err != nil {
		return "", err
	}
	return out, nil
}
