// Package naming derives archived recording names from their source names.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects how the codec token in a filename is replaced.
type Mode string

const (
	// ModeExtension replaces only the final extension of the name.
	ModeExtension Mode = "extension"
	// ModeLegacy replaces the first occurrence of the token anywhere in the
	// name, as the shell-era archiver did. Names like "wavlog-1.wav" become
	// "mp3log-1.wav" in this mode, so use it only to stay consistent with
	// rows written by that archiver.
	ModeLegacy Mode = "legacy"
)

// ParseMode maps a config value to a Mode. Empty means ModeExtension.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeExtension:
		return ModeExtension, nil
	case ModeLegacy:
		return ModeLegacy, nil
	default:
		return "", fmt.Errorf("unknown naming mode %q", s)
	}
}

// Rename returns name with the from codec replaced by the to codec.
// from and to are bare extensions without the dot.
func Rename(name, from, to string, mode Mode) string {
	if mode == ModeLegacy {
		return strings.Replace(name, from, to, 1)
	}
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, "."+from) {
		return name
	}
	return strings.TrimSuffix(name, ext) + "." + to
}

// HasExt reports whether name already carries the ext extension.
func HasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), "."+ext)
}
