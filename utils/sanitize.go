package utils

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFilenameBytes leaves room for the storage prefix within the usual 255 byte limit.
const MaxFilenameBytes = 200

// CleanFilename drops client-side directory components from a user supplied
// filename and otherwise keeps it byte for byte. It returns fallback when
// nothing usable is left.
func CleanFilename(name, fallback string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if strings.TrimSpace(name) == "" || name == "." || name == ".." || name == "/" {
		return fallback
	}
	return name
}

// ValidFilename reports whether name can be stored unchanged.
func ValidFilename(name string) bool {
	return len(name) <= MaxFilenameBytes &&
		utf8.ValidString(name) &&
		!strings.ContainsFunc(name, unicode.IsControl)
}
