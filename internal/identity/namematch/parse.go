package namematch

import (
	"strings"
	"unicode/utf8"
)

// NameParts is a parsed full name. Any part may be empty.
type NameParts struct {
	Surname    string `json:"surname,omitempty"`
	Given      string `json:"given,omitempty"`
	Patronymic string `json:"patronymic,omitempty"`
}

func (p NameParts) IsZero() bool {
	return p.Surname == "" && p.Given == "" && p.Patronymic == ""
}

var patronymicSuffixes = []string{
	"ович", "евич", "овна", "евна", "инична", "ична", "ич",
	"улы", "кызы", "уулу", "оглы",
}

// Parse splits an already normalized name using token-count heuristics.
func Parse(normalized string) NameParts {
	tokens := strings.Fields(normalized)
	switch len(tokens) {
	case 0:
		return NameParts{}
	case 1:
		return NameParts{Surname: tokens[0]}
	case 2:
		first, second := tokens[0], tokens[1]
		if g, p, ok := splitTwoInitials(second); ok {
			return NameParts{Surname: first, Given: g, Patronymic: p}
		}
		if isInitial(second) {
			return NameParts{Surname: first, Given: second}
		}
		if hasPatronymicSuffix(second) {
			return NameParts{Given: first, Patronymic: second}
		}
		return NameParts{Surname: first, Given: second}
	default:
		return NameParts{
			Surname:    tokens[0],
			Given:      tokens[1],
			Patronymic: strings.Join(tokens[2:], " "),
		}
	}
}

// isInitial reports whether tok is a single letter, optionally dotted.
func isInitial(tok string) bool {
	return utf8.RuneCountInString(strings.ReplaceAll(tok, ".", "")) == 1
}

// splitTwoInitials recognizes "а.б.", "а.б" and "аб." as two initials. A
// bare two-letter token is treated as a name, not as initials.
func splitTwoInitials(tok string) (string, string, bool) {
	if !strings.Contains(tok, ".") {
		return "", "", false
	}
	letters := []rune(strings.ReplaceAll(tok, ".", ""))
	if len(letters) != 2 {
		return "", "", false
	}
	return string(letters[0]) + ".", string(letters[1]) + ".", true
}

func hasPatronymicSuffix(tok string) bool {
	for _, suf := range patronymicSuffixes {
		if strings.HasSuffix(tok, suf) && utf8.RuneCountInString(tok) > utf8.RuneCountInString(suf) {
			return true
		}
	}
	return false
}
