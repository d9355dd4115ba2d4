package language

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Supported language tags, matching what the estate-chat service accepts.
const (
	Japanese   = "ja"
	English    = "en"
	Vietnamese = "vi"
)

// Default is the tag used when detection has nothing to go on.
const Default = Japanese

var supported = map[string]struct{}{
	Japanese:   {},
	English:    {},
	Vietnamese: {},
}

// IsSupported reports whether tag is one of the service's language tags.
func IsSupported(tag string) bool {
	_, ok := supported[tag]
	return ok
}

// vietnameseRunes holds the precomposed Latin characters that only occur in
// Vietnamese orthography. ASCII vowels are deliberately absent so plain
// English text never matches.
const vietnameseRunes = "àáạảãâầấậẩẫăằắặẳẵèéẹẻẽêềếệểễìíịỉĩ" +
	"òóọỏõôồốộổỗơờớợởỡùúụủũưừứựửữỳýỵỷỹđ" +
	"ÀÁẠẢÃÂẦẤẬẨẪĂẰẮẶẲẴÈÉẸẺẼÊỀẾỆỂỄÌÍỊỈĨ" +
	"ÒÓỌỎÕÔỒỐỘỔỖƠỜỚỢỞỠÙÚỤỦŨƯỪỨỰỬỮỲÝỴỶỸĐ"

// Detect guesses the language of text by script sampling. Japanese wins on
// any kana or CJK ideograph, Vietnamese on its diacritic set, everything
// else falls back to English. Empty input yields the default tag.
func Detect(text string) string {
	if text == "" {
		return Default
	}

	for _, r := range text {
		if isJapanese(r) {
			return Japanese
		}
	}

	if strings.ContainsAny(text, vietnameseRunes) {
		return Vietnamese
	}

	return English
}

func isJapanese(r rune) bool {
	return unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han)
}

// Normalize trims surrounding whitespace and collapses internal runs of
// whitespace to a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// MaxMessageLength is the upper bound the service enforces on message text.
const MaxMessageLength = 1000

// IsValid reports whether the trimmed text falls within the accepted length
// bounds for a chat message. The limit counts characters, not bytes, to
// match what the service enforces on multi-byte scripts.
func IsValid(text string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	return n >= 1 && n <= MaxMessageLength
}
