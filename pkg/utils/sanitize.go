package utils

import (
	"regexp"
	"strings"
)

// --- Filename Sanitization ---
var whitespaceRun = regexp.MustCompile(`\s+`)             // Runs of whitespace collapse to a single underscore
var disallowedChars = regexp.MustCompile(`[^a-zA-Z0-9_]`) // Everything outside alphanumerics and underscore is dropped

const maxFilenameLength = 100 // Max length for sanitized filename stems

// SanitizeFilename reduces a part number (or filename override) to a
// string safe for use as a filename stem: whitespace becomes underscores
// and every remaining character outside [A-Za-z0-9_] is removed.
func SanitizeFilename(name string) string {
	sanitized := whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	sanitized = disallowedChars.ReplaceAllString(sanitized, "")
	sanitized = strings.Trim(sanitized, "_")

	if len(sanitized) > maxFilenameLength {
		sanitized = sanitized[:maxFilenameLength]
		sanitized = strings.Trim(sanitized, "_")
	}

	return sanitized
}
