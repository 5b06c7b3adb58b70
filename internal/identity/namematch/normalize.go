package namematch

import (
	"strings"
	"unicode"
)

// latinLookalikes maps Latin letters that OCR commonly emits in place of the
// visually identical Cyrillic ones. Input is already lower-cased.
var latinLookalikes = map[rune]rune{
	'a': 'а',
	'b': 'в',
	'c': 'с',
	'e': 'е',
	'h': 'н',
	'k': 'к',
	'm': 'м',
	'o': 'о',
	'p': 'р',
	't': 'т',
	'x': 'х',
	'y': 'у',
}

// kazakhLetters folds Kazakh-specific Cyrillic letters to their closest
// Russian counterparts, plus ё to е.
var kazakhLetters = map[rune]rune{
	'ә': 'а',
	'ғ': 'г',
	'қ': 'к',
	'ң': 'н',
	'ө': 'о',
	'ұ': 'у',
	'ү': 'у',
	'һ': 'х',
	'і': 'и',
	'ё': 'е',
}

// Normalize case-folds s, maps look-alike and Kazakh letters to Russian
// Cyrillic, replaces punctuation other than '.' and '-' with spaces and
// collapses whitespace. Tokens left with no letter or digit are dropped.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if m, ok := latinLookalikes[r]; ok {
			r = m
		} else if m, ok := kazakhLetters[r]; ok {
			r = m
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if strings.IndexFunc(f, isWordRune) >= 0 {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
