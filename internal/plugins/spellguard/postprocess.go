package spellguard

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxChatLength     = 256
	previewLength     = 60
	minPunctuateRunes = 3
)

var (
	sentenceStart = regexp.MustCompile(`[.!?][\s\p{Z}\x{FEFF}]+[a-zäöüß]`)
	lineBreaks    = regexp.MustCompile(`[\r\n]+`)
)

// applyCapitalization upper-cases a lowercase letter that follows ., ! or ?
// and whitespace. Whitespace includes Unicode spaces such as NBSP.
func applyCapitalization(message string) string {
	return sentenceStart.ReplaceAllStringFunc(message, func(m string) string {
		r, size := utf8.DecodeLastRuneInString(m)
		return m[:len(m)-size] + upperFirst(string(r))
	})
}

// capitalizeFirst upper-cases the message's first character when it is a
// lowercase letter.
func capitalizeFirst(message string) string {
	r, size := utf8.DecodeRuneInString(message)
	if size == 0 || !isLowerSentenceLetter(r) {
		return message
	}
	return upperFirst(string(r)) + message[size:]
}

func isLowerSentenceLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || r == 'ä' || r == 'ö' || r == 'ü' || r == 'ß'
}

// ensureTrailingPunctuation adds a full stop to messages that end in a
// letter or digit. Messages of three characters or fewer are left alone.
func ensureTrailingPunctuation(message string) string {
	trimmed := strings.TrimRightFunc(message, unicode.IsSpace)
	if utf8.RuneCountInString(trimmed) <= minPunctuateRunes {
		return message
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	if !unicode.IsLetter(last) && !unicode.IsMark(last) && !(last >= '0' && last <= '9') {
		return message
	}
	return trimmed + "." + message[len(trimmed):]
}

// prepareOutgoing collapses line breaks and caps the chat length.
func prepareOutgoing(message string) string {
	single := strings.TrimSpace(lineBreaks.ReplaceAllString(message, " "))
	if r := []rune(single); len(r) > maxChatLength {
		single = string(r[:maxChatLength])
	}
	return single
}

func previewText(message string) string {
	r := []rune(message)
	if len(r) <= previewLength {
		return message
	}
	return string(r[:previewLength-3]) + "..."
}

type postOptions struct {
	autoCapitalize    bool
	capitalizeFirst   bool
	ensurePunctuation bool
}

func postProcess(message string, opts postOptions) string {
	result := message
	if opts.autoCapitalize {
		result = applyCapitalization(result)
		if opts.capitalizeFirst {
			result = capitalizeFirst(result)
		}
	}
	if opts.ensurePunctuation {
		result = ensureTrailingPunctuation(result)
	}
	return result
}
