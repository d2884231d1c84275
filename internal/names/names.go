// Package names holds the case rules shared by tag matching, property lookup
// and generated identifiers.
package names

import (
	"go/token"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold returns the case-folded form of s used as a lookup key. A Caser is
// stateful, so every call gets its own.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Equal reports whether a and b are equal under case folding.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Key builds the folded "prefix:name" tag key.
func Key(prefix, name string) string {
	return Fold(prefix) + ":" + Fold(name)
}

// Exported turns an arbitrary file path fragment into an exported Go
// identifier: "views/order-detail.view.yaml" -> "ViewsOrderDetailView".
func Exported(s string) string {
	title := cases.Title(language.Und, cases.NoLower)
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(title.String(p))
	}
	out := b.String()
	if out == "" {
		return "View"
	}
	if r := rune(out[0]); unicode.IsDigit(r) {
		out = "View" + out
	}
	return out
}

// Unexported lower-cases the first rune of an identifier and avoids keywords.
func Unexported(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	out := string(runes)
	if token.IsKeyword(out) {
		out += "_"
	}
	return out
}
