package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var abbreviations = map[string]string{
	"sta":  "santa",
	"sto":  "santo",
	"gen":  "general",
	"pres": "president",
}

// NormalizeName folds a place name for joins across sources: accents stripped,
// case folded, punctuation removed, "City of X" / "X City" reduced to "x" and
// parenthesized qualifiers such as "(Capital)" dropped.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}
	s = cases.Fold().String(s)

	if i := strings.Index(s, "("); i >= 0 {
		if j := strings.Index(s[i:], ")"); j >= 0 {
			s = s[:i] + " " + s[i+j+1:]
		} else {
			s = s[:i]
		}
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	words := strings.Fields(s)
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	if len(words) > 2 && words[0] == "city" && words[1] == "of" {
		words = words[2:]
	}
	if len(words) > 1 && words[len(words)-1] == "city" {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
