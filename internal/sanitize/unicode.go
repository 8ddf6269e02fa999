// Package sanitize cleans scraped third-party text and links before they
// reach a client.
package sanitize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxDecodeLength is the length in UTF-16 code units above which text is
// returned untouched. Characters outside the BMP count twice.
const MaxDecodeLength = 1_000_000

var (
	escapedUnitExpr = regexp.MustCompile(`[/\\]{1,4}u([0-9a-fA-F]{4})`)
	hexEntityExpr   = regexp.MustCompile(`&#x([0-9a-fA-F]{1,6});`)
	decEntityExpr   = regexp.MustCompile(`&#([0-9]{1,7});`)
)

// DecodeUnicodeEscapes turns leaked escape sequences (\u00e9, /u00e9,
// &#xE9;, &#233;) into the characters they stand for and returns the result
// in NFC. It never fails: on any internal problem the input is returned as is.
//
// The function is not idempotent; decode each raw field exactly once.
func DecodeUnicodeEscapes(text string) (out string) {
	if text == "" || exceedsUTF16Len(text, MaxDecodeLength) {
		return text
	}

	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()

	decoded := decodeEscapedUnits(text)
	decoded = decodeEntities(decoded, hexEntityExpr, 16)
	decoded = decodeEntities(decoded, decEntityExpr, 10)
	return norm.NFC.String(decoded)
}

func exceedsUTF16Len(s string, limit int) bool {
	if len(s) <= limit {
		return false
	}
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
		if n > limit {
			return true
		}
	}
	return false
}

// decodeEscapedUnits replaces slash/backslash escaped UTF-16 code units.
// Surrogate pairs written as two adjacent escapes become one code point; a
// lone surrogate keeps its original text.
func decodeEscapedUnits(s string) string {
	matches := escapedUnitExpr.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	last := 0
	for i := 0; i < len(matches); i++ {
		m := matches[i]
		b.WriteString(s[last:m[0]])
		last = m[1]

		unit, err := strconv.ParseUint(s[m[2]:m[3]], 16, 16)
		if err != nil {
			b.WriteString(s[m[0]:m[1]])
			continue
		}

		r := rune(unit)
		if utf16.IsSurrogate(r) {
			if i+1 < len(matches) && matches[i+1][0] == m[1] {
				next := matches[i+1]
				low, err := strconv.ParseUint(s[next[2]:next[3]], 16, 16)
				if err == nil {
					if pair := utf16.DecodeRune(r, rune(low)); pair != utf8.RuneError {
						b.WriteRune(pair)
						last = next[1]
						i++
						continue
					}
				}
			}
			b.WriteString(s[m[0]:m[1]])
			continue
		}

		b.WriteRune(r)
	}
	b.WriteString(s[last:])

	return b.String()
}

func decodeEntities(s string, expr *regexp.Regexp, base int) string {
	return expr.ReplaceAllStringFunc(s, func(entity string) string {
		digits := expr.FindStringSubmatch(entity)[1]
		cp, err := strconv.ParseUint(digits, base, 32)
		if err != nil || cp > utf8.MaxRune || !utf8.ValidRune(rune(cp)) {
			return entity
		}
		return string(rune(cp))
	})
}
