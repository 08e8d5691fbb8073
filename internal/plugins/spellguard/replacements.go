package spellguard

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var commonTypos = [][2]string{
	{"teh", "the"},
	{"recieve", "receive"},
	{"seperate", "separate"},
	{"definately", "definitely"},
	{"adress", "address"},
	{"wich", "which"},
	{"wierd", "weird"},
	{"awsome", "awesome"},
	{"alot", "a lot"},
	{"vieleicht", "vielleicht"},
	{"villeicht", "vielleicht"},
	{"wärend", "während"},
	{"wehre", "wäre"},
	{"seperat", "separat"},
	{"wierklich", "wirklich"},
}

// Replacements maps lowercase typos to their correction. It is read-only
// after construction.
type Replacements struct {
	table map[string]string
}

func NewReplacements() *Replacements {
	r := &Replacements{table: make(map[string]string, len(commonTypos))}
	for _, e := range commonTypos {
		r.table[e[0]] = e[1]
	}
	return r
}

// Apply replaces every known typo that stands as a whole word, keeping the
// case pattern of the typed word.
func (r *Replacements) Apply(text string) string {
	if len(r.table) == 0 || text == "" {
		return text
	}
	lower := cases.Lower(language.Und)
	runes := []rune(text)

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); {
		if !isWordRune(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isWordRune(runes[j]) {
			j++
		}
		word := string(runes[i:j])
		glued := (i > 0 && isASCIIWordRune(runes[i-1])) || (j < len(runes) && isASCIIWordRune(runes[j]))
		if fix, ok := r.table[lower.String(word)]; ok && !glued {
			b.WriteString(matchCase(word, fix))
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsMark(r)
}

// isASCIIWordRune covers the characters that make a letter run part of a
// larger identifier such as "teh2" or "my_teh".
func isASCIIWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9')
}

// matchCase copies the case pattern of source onto replacement: all caps,
// capitalised, or as-is.
func matchCase(source, replacement string) string {
	if source == "" {
		return replacement
	}
	upper := cases.Upper(language.Und)
	if source == upper.String(source) {
		return upper.String(replacement)
	}
	first := []rune(source)[0]
	if unicode.IsUpper(first) {
		return upperFirst(replacement)
	}
	return replacement
}

func upperFirst(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return cases.Upper(language.Und).String(string(runes[0])) + string(runes[1:])
}
