package util

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// SanitizeFileName strips any directory components a client sent along with
// the name, replaces invalid UTF-8, drops NUL bytes and rejects names that are
// empty after trimming.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(strings.ReplaceAll(StorableText(name), "\\", "/"))
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	if s == "" || s == "." || s == ".." {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// StorableText makes s acceptable to a Postgres TEXT column: invalid UTF-8
// sequences become U+FFFD and NUL bytes are dropped.
func StorableText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}

// TruncateRunes returns at most max runes of s.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
