package namematch

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// TokenSortRatio sorts the whitespace-separated tokens of both strings and
// returns their Indel similarity in [0, 100]:
// 100 * 2*LCS / (len(a) + len(b)), lengths in runes.
func TokenSortRatio(a, b string) float64 {
	a, b = sortTokens(a), sortTokens(b)
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 0
	}
	return 100 * float64(2*edlib.LCS(a, b)) / float64(total)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
