// Package normalize turns raw team/league/sport strings from feeds into
// canonical tokens. Pure functions only: no caches, no I/O, safe to call
// from every ingestion goroutine concurrently.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nvoloshin/betfuse/internal/pkg/enums"
)

// Options controls the optional normalization steps. Zero value keeps
// everything off except basic folding.
type Options struct {
	StripSuffixes bool     // strip club/youth/reserve qualifiers from the tail
	ExtraSuffixes []string // deployment-specific suffixes on top of the builtin set
	MinTokens     int      // never strip a name below this many tokens (min 1)
}

// Normalizer folds raw names into canonical form.
type Normalizer struct {
	opts     Options
	suffixes map[string]struct{}
}

func New(opts Options) *Normalizer {
	if opts.MinTokens < 1 {
		opts.MinTokens = 1
	}
	suffixes := make(map[string]struct{}, len(teamSuffixes)+len(opts.ExtraSuffixes))
	for _, s := range teamSuffixes {
		suffixes[s] = struct{}{}
	}
	for _, s := range opts.ExtraSuffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			suffixes[s] = struct{}{}
		}
	}
	return &Normalizer{opts: opts, suffixes: suffixes}
}

// countryTranslations maps source-language country names to one canonical
// language. Applied before folding: country names are the most common
// cross-source mismatch ("Новая Зеландия" on one feed, "New Zealand" on
// another describe the same team).
var countryTranslations = map[string]string{
	"новая зеландия": "new zealand",
	"новы зеланд":    "new zealand",
	"германия":       "germany",
	"франция":        "france",
	"испания":        "spain",
	"италия":         "italy",
	"англия":         "england",
	"португалия":     "portugal",
	"нидерланды":     "netherlands",
	"голландия":      "netherlands",
	"бельгия":        "belgium",
	"хорватия":       "croatia",
	"сербия":         "serbia",
	"польша":         "poland",
	"чехия":          "czech republic",
	"швейцария":      "switzerland",
	"швеция":         "sweden",
	"норвегия":       "norway",
	"дания":          "denmark",
	"финляндия":      "finland",
	"сша":            "usa",
	"бразилия":       "brazil",
	"аргентина":      "argentina",
	"турция":         "turkey",
	"греция":         "greece",
	"япония":         "japan",
	"австралия":      "australia",
	"канада":         "canada",
	"мексика":        "mexico",
	"украина":        "ukraine",
	"россия":         "russia",
}

// teamSuffixes are tail qualifiers that denote a youth/reserve/secondary
// squad of the same club. Stripping them is feature-flagged because for a
// few sources "B" teams genuinely play as separate entities.
var teamSuffixes = []string{
	"ii", "iii", "b", "2", "u17", "u18", "u19", "u20", "u21", "u23",
	"youth", "reserves", "reserve", "academy", "junior", "juniors", "women", "w",
}

// ultraCommonTokens carry no identity on their own; a fuzzy match supported
// only by these is meaningless ("FC ... City" matches half a league).
var ultraCommonTokens = map[string]struct{}{
	"fc": {}, "afc": {}, "cf": {}, "sc": {}, "ac": {}, "as": {}, "ca": {},
	"fk": {}, "bk": {}, "bc": {}, "nk": {}, "rc": {}, "cd": {}, "ud": {},
	"ssc": {}, "ks": {}, "ksk": {},
	"club": {}, "united": {}, "city": {}, "team": {}, "real": {},
	"esports": {}, "gaming": {}, "esport": {},
	"de": {}, "la": {}, "los": {}, "el": {}, "the": {}, "of": {},
}

// Name normalizes a raw team name to its canonical token string.
// Idempotent: Name(Name(x)) == Name(x).
func (n *Normalizer) Name(raw string) string {
	s := collapseSpaces(strings.ToLower(raw))
	if s == "" {
		return ""
	}

	// Country translation first, on the whole name. Folding would mangle
	// the source-language key, so this has to happen before it.
	if translated, ok := countryTranslations[s]; ok {
		s = translated
	}

	s = Fold(s)

	if n.opts.StripSuffixes {
		s = n.stripSuffixes(s)
	}
	return s
}

// stripSuffixes removes trailing qualifier tokens while the name keeps at
// least MinTokens meaningful tokens.
func (n *Normalizer) stripSuffixes(s string) string {
	tokens := strings.Fields(s)
	for len(tokens) > n.opts.MinTokens {
		last := tokens[len(tokens)-1]
		if _, ok := n.suffixes[last]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// Fold lowercases, strips diacritics (compatibility decomposition, drop
// combining marks, recompose) and drops everything that is not a letter,
// digit or space. "Nový Zéland" and "Novy Zeland" fold identically, and so
// do fullwidth variants. Total on arbitrary input: the transform chain
// cannot fail on valid or invalid UTF-8, it replaces as it goes.
func Fold(s string) string {
	s = strings.ToLower(s)

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return collapseSpaces(b.String())
}

// Tokens splits a normalized name into its tokens.
func Tokens(name string) []string {
	return strings.Fields(name)
}

// SignificantTokens returns tokens that can support a fuzzy match: length
// at least 2 and not in the ultra-common set.
func SignificantTokens(name string) []string {
	var out []string
	for _, tok := range strings.Fields(name) {
		if len(tok) < 2 {
			continue
		}
		if _, common := ultraCommonTokens[tok]; common {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// IsUltraCommon reports whether the token is in the ultra-common set.
func IsUltraCommon(tok string) bool {
	_, ok := ultraCommonTokens[tok]
	return ok
}

// Sport resolves a raw sport string to the canonical sport through the
// alias table. Unknown sports pass through unchanged.
func Sport(raw string) enums.Sport {
	s, _ := enums.ParseSport(raw)
	return s
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
