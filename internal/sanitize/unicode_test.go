package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"
)

func TestDecodeUnicodeEscapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text", in: "Normal text", want: "Normal text"},
		{name: "empty", in: "", want: ""},
		{name: "slash escape", in: "Z/u00fcrich", want: "Zürich"},
		{name: "backslash escape uppercase hex", in: `St-L\u00E9gier`, want: "St-Légier"},
		{name: "double backslash", in: `Gen\\u00e8ve`, want: "Genève"},
		{name: "four slashes", in: "Z////u00fcrich", want: "Zürich"},
		{name: "five slashes keeps the first", in: "Z/////u00fcrich", want: "Z/ürich"},
		{name: "hex entity", in: "caf&#xE9;", want: "café"},
		{name: "decimal entity", in: "caf&#233;", want: "café"},
		{name: "multiple escapes", in: "Z/u00fcrich - Gen/u00e8ve", want: "Zürich - Genève"},
		{name: "mixed forms", in: `Z\u00fcrich &#x26; Gen&#232;ve`, want: "Zürich & Genève"},
		{name: "surrogate pair", in: `ski \ud83c\udfbf`, want: "ski \U0001F3BF"},
		{name: "lone surrogate untouched", in: `bad \ud83c end`, want: `bad \ud83c end`},
		{name: "hex entity too long is ignored", in: "test&#xFFFFFFFF;", want: "test&#xFFFFFFFF;"},
		{name: "hex entity out of range", in: "test&#x110000;", want: "test&#x110000;"},
		{name: "decimal entity out of range", in: "test&#1114112;", want: "test&#1114112;"},
		{name: "surrogate entity untouched", in: "x&#xD800;", want: "x&#xD800;"},
		{name: "not hex after u", in: "/uZZZZ", want: "/uZZZZ"},
		{name: "combining sequence composed", in: "e&#x301;cole", want: "école"},
		{name: "escaped combining mark composed", in: `Ecole du Le\u0301man`, want: "Ecole du Léman"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DecodeUnicodeEscapes(tc.in)
			assert.Equal(t, tc.want, got)
			assert.True(t, norm.NFC.IsNormalString(got) || got == tc.in)
		})
	}
}

func TestDecodeUnicodeEscapesOversized(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("a", MaxDecodeLength) + `\u00e9`
	assert.Equal(t, in, DecodeUnicodeEscapes(in))

	atLimit := strings.Repeat("a", MaxDecodeLength-6) + `\u00e9`
	assert.Equal(t, strings.Repeat("a", MaxDecodeLength-6)+"é", DecodeUnicodeEscapes(atLimit))
}

func TestDecodeUnicodeEscapesLimitCountsUTF16Units(t *testing.T) {
	t.Parallel()

	// each skier is two UTF-16 units, so this is over the limit at half as many runes
	over := strings.Repeat("\U0001F3BF", MaxDecodeLength/2) + `\u00e9`
	assert.Equal(t, over, DecodeUnicodeEscapes(over))

	under := strings.Repeat("\U0001F3BF", MaxDecodeLength/2-10) + `\u00e9`
	assert.Equal(t, strings.Repeat("\U0001F3BF", MaxDecodeLength/2-10)+"é", DecodeUnicodeEscapes(under))
}

func TestDecodeUnicodeEscapesIsNotIdempotent(t *testing.T) {
	t.Parallel()

	once := DecodeUnicodeEscapes(`\\u005cu00e9`)
	assert.Equal(t, `\u00e9`, once)
	assert.Equal(t, "é", DecodeUnicodeEscapes(once))
}
