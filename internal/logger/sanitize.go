package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Byte caps for user-controlled values written to logs.
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128 // OIDC subjects such as "auth0|..." stay well under this
	MaxUtteranceLength     = 300
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
	MaxDebugContentLength  = 10000 // prompts and raw extractor payloads
)

// SanitizeString makes s safe for a single log field: invalid UTF-8 is
// dropped, control characters other than whitespace are removed, and the
// result is cut to maxLength bytes on a rune boundary with "..." appended.
// A non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case r == utf8.RuneError:
			return -1
		case unicode.IsPrint(r), r == ' ', r == '\t', r == '\n', r == '\r':
			return r
		default:
			return -1
		}
	}, strings.ToValidUTF8(s, ""))

	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func SanitizePath(path string) string { return SanitizeString(path, MaxPathLength) }

func SanitizeUserID(userID string) string { return SanitizeString(userID, MaxUserIDLength) }

// SanitizeUtterance collapses a chat message onto one line before capping it.
func SanitizeUtterance(utterance string) string {
	return SanitizeString(strings.Join(strings.Fields(utterance), " "), MaxUtteranceLength)
}

func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeErrorString(err.Error())
}

func SanitizeErrorString(msg string) string { return SanitizeString(msg, MaxErrorMessageLength) }

// SanitizeDebugContent is for debug-level previews of prompts and responses.
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
