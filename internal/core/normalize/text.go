package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters with no canonical decomposition onto an ASCII base.
var foldReplacer = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ı", "i",
)

var honorifics = map[string]struct{}{
	"dr": {}, "prof": {}, "mr": {}, "mrs": {}, "ms": {},
}

var legalSuffixes = map[string]struct{}{
	"inc": {}, "ltd": {}, "gmbh": {}, "ag": {}, "corp": {}, "corporation": {},
	"llc": {}, "sa": {}, "bv": {}, "plc": {}, "co": {}, "limited": {}, "incorporated": {},
}

func isApostrophe(r rune) bool {
	switch r {
	case '\'', '`', '‘', '’', 'ʼ':
		return true
	}
	return false
}

// stripMarks removes combining marks after canonical decomposition.
// A transform.Chain keeps internal state, so one is built per call.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// FoldText lower-cases s, strips diacritics, drops apostrophes, turns other
// punctuation into spaces and collapses whitespace.
func FoldText(s string) string {
	s = strings.ToLower(s)
	s = stripMarks(s)
	s = foldReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isApostrophe(r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FoldName is FoldText with leading honorifics removed. A name consisting only
// of honorifics keeps its last token.
func FoldName(s string) string {
	tokens := strings.Fields(FoldText(s))
	for len(tokens) > 1 {
		if _, ok := honorifics[tokens[0]]; !ok {
			break
		}
		tokens = tokens[1:]
	}
	return strings.Join(tokens, " ")
}

// FoldOrganization is FoldText with trailing legal-form suffixes removed.
// At least one token always remains.
func FoldOrganization(s string) string {
	tokens := strings.Fields(FoldText(s))
	for len(tokens) > 1 {
		if _, ok := legalSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// FoldEmail trims and lower-cases an address and drops a mailto: scheme.
func FoldEmail(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), "")
	for strings.HasPrefix(s, "mailto:") {
		s = strings.TrimPrefix(s, "mailto:")
	}
	return s
}
