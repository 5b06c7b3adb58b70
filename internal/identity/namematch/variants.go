package namematch

import "strings"

// Variant names one canonical rendering of a name.
type Variant string

const (
	VariantFull            Variant = "FULL"
	VariantLastFirst       Variant = "LAST_FIRST"
	VariantFirstPatronymic Variant = "FIRST_PATRONYMIC"
	VariantLastInitial     Variant = "LAST_INITIAL"
	VariantLastTwoInitials Variant = "LAST_TWO_INITIALS"
	VariantLastOnly        Variant = "LAST_ONLY"
)

// VariantSet maps a variant to its comparison string. It never holds an
// empty value: a variant whose parts are missing is absent.
type VariantSet map[Variant]string

// Variants renders every variant the parts can support.
func Variants(p NameParts) VariantSet {
	vs := VariantSet{}
	s, g, pat := p.Surname, p.Given, p.Patronymic
	put := func(v Variant, parts ...string) {
		for _, part := range parts {
			if part == "" {
				return
			}
		}
		vs[v] = strings.Join(parts, " ")
	}

	put(VariantFull, s, g, pat)
	put(VariantLastFirst, s, g)
	put(VariantFirstPatronymic, g, pat)
	put(VariantLastOnly, s)
	if g != "" {
		put(VariantLastInitial, s, initial(g))
		if pat != "" {
			put(VariantLastTwoInitials, s, initial(g)+initial(pat))
		}
	}
	return vs
}

// Shape detects which variant an extracted name was written in. ok is false
// for an empty name.
func Shape(p NameParts) (Variant, bool) {
	switch {
	case p.Surname != "" && p.Given != "" && p.Patronymic != "":
		if isInitial(p.Given) || isInitial(p.Patronymic) {
			return VariantLastTwoInitials, true
		}
		return VariantFull, true
	case p.Surname != "" && p.Given != "":
		if isInitial(p.Given) {
			return VariantLastInitial, true
		}
		return VariantLastFirst, true
	case p.Given != "" && p.Patronymic != "":
		return VariantFirstPatronymic, true
	case p.Surname != "":
		return VariantLastOnly, true
	}
	return "", false
}

func initial(part string) string {
	for _, r := range part {
		if r != '.' {
			return string(r) + "."
		}
	}
	return ""
}

// initialsEqual compares two variant strings treating "а.б.", "аб" and
// "а. б." as the same initials. The leading token is compared exactly.
func initialsEqual(a, b string) bool {
	return initialsKey(a) == initialsKey(b)
}

func initialsKey(v string) string {
	head, rest, _ := strings.Cut(v, " ")
	rest = strings.NewReplacer(".", "", " ", "").Replace(rest)
	return head + " " + rest
}
