package coherency

import "strings"

// Language is the closed set of languages the scorer and safety gate
// recognise.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageRust       Language = "rust"
)

var knownLanguages = map[Language]bool{
	LanguageGo:         true,
	LanguageJavaScript: true,
	LanguageTypeScript: true,
	LanguagePython:     true,
	LanguageRust:       true,
}

// IsKnown reports whether lang is a recognised language.
func IsKnown(lang Language) bool {
	return knownLanguages[Language(strings.ToLower(string(lang)))]
}

// sameFamily reports whether a and b are within a family that Ranker
// treats as a 0.7 partial language match (JS/TS).
func sameFamily(a, b Language) bool {
	families := [][]Language{
		{LanguageJavaScript, LanguageTypeScript},
	}
	for _, f := range families {
		inA, inB := false, false
		for _, l := range f {
			if l == a {
				inA = true
			}
			if l == b {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// SameFamily is the exported form used by the ranker package.
func SameFamily(a, b Language) bool { return sameFamily(a, b) }
