package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/allergenlens/backend/internal/domain"
)

// Compiled regex patterns for fallback term extraction
var (
	// Quoted substrings of at least three characters, e.g. 'Nutella' or "Oreo Thins"
	quotedSubstringPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])["'` + "`" + `‘’“”]([^"'` + "`" + `‘’“”]{3,})["'` + "`" + `‘’“”]`)

	// Everything but ASCII letters, digits, apostrophes and spaces becomes a separator
	tokenSeparatorPattern = regexp.MustCompile(`[^A-Za-z0-9' ]`)

	whitespaceRunPattern = regexp.MustCompile(`\s+`)
)

// queryStopWords are dropped before building the shorter token phrases
var queryStopWords = map[string]bool{
	// Articles and pronouns
	"a":     true,
	"an":    true,
	"the":   true,
	"i":     true,
	"me":    true,
	"my":    true,
	"we":    true,
	"you":   true,
	"your":  true,
	"it":    true,
	"its":   true,
	"it's":  true,
	"this":  true,
	"that":  true,
	"these": true,
	"those": true,
	"there": true,

	// Auxiliary verbs
	"is":     true,
	"are":    true,
	"was":    true,
	"were":   true,
	"be":     true,
	"been":   true,
	"do":     true,
	"does":   true,
	"did":    true,
	"has":    true,
	"have":   true,
	"had":    true,
	"can":    true,
	"could":  true,
	"will":   true,
	"would":  true,
	"should": true,
	"may":    true,
	"might":  true,
	"must":   true,

	// Prepositions and conjunctions
	"of":    true,
	"in":    true,
	"on":    true,
	"at":    true,
	"to":    true,
	"for":   true,
	"with":  true,
	"by":    true,
	"from":  true,
	"about": true,
	"and":   true,
	"or":    true,
	"if":    true,

	// Question words and request phrasing
	"what":   true,
	"which":  true,
	"who":    true,
	"how":    true,
	"any":    true,
	"some":   true,
	"tell":   true,
	"show":   true,
	"give":   true,
	"find":   true,
	"check":  true,
	"please": true,
	"know":   true,

	// Allergen-domain filler
	"contain":     true,
	"contains":    true,
	"containing":  true,
	"allergen":    true,
	"allergens":   true,
	"allergy":     true,
	"allergies":   true,
	"allergic":    true,
	"ingredient":  true,
	"ingredients": true,
	"product":     true,
	"food":        true,
	"eat":         true,
	"safe":        true,
}

// BuildFallbackCandidateTerms derives search terms from the raw query without a model.
// Broad phrasings come first, narrower token phrases after them.
func BuildFallbackCandidateTerms(query string) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []string{}
	}

	candidates := []string{trimmed}

	// Quoted substrings keep their original casing
	candidates = append(candidates, extractQuotedSubstrings(trimmed)...)

	tokens := tokenizeQuery(trimmed)
	if len(tokens) > 0 {
		candidates = append(candidates, strings.Join(tokens, " "))

		filtered := make([]string, 0, len(tokens))
		for _, token := range tokens {
			if !queryStopWords[strings.ToLower(token)] {
				filtered = append(filtered, token)
			}
		}

		if len(filtered) > 0 {
			candidates = append(candidates,
				strings.Join(filtered, " "),
				filtered[0],
				joinFirst(filtered, 2),
				joinFirst(filtered, 3),
			)
		} else {
			candidates = append(candidates, tokens[0])
		}

		var capitalized []string
		for _, token := range tokens {
			if r, _ := utf8.DecodeRuneInString(token); unicode.IsUpper(r) {
				capitalized = append(capitalized, token)
			}
		}
		if len(capitalized) > 0 {
			candidates = append(candidates,
				strings.Join(capitalized, " "),
				capitalized[0],
				joinFirst(capitalized, 2),
			)
		}
	}

	return finalizeFallbackTerms(candidates)
}

func extractQuotedSubstrings(s string) []string {
	var out []string
	for _, loc := range quotedSubstringPattern.FindAllStringSubmatchIndex(s, -1) {
		// The closing quote must not run into a word, as in "Jerry's"
		if end := loc[1]; end < len(s) {
			if r, _ := utf8.DecodeRuneInString(s[end:]); unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		if inner := strings.TrimSpace(s[loc[2]:loc[3]]); len(inner) >= 3 {
			out = append(out, inner)
		}
	}
	return out
}

func tokenizeQuery(s string) []string {
	cleaned := tokenSeparatorPattern.ReplaceAllString(s, " ")
	return strings.Fields(cleaned)
}

func joinFirst(tokens []string, n int) string {
	if len(tokens) < n {
		n = len(tokens)
	}
	return strings.Join(tokens[:n], " ")
}

// finalizeFallbackTerms trims, drops one-character entries and deduplicates in order
func finalizeFallbackTerms(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	terms := make([]string, 0, domain.MaxCandidateTerms)

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if len(c) <= 1 || seen[c] {
			continue
		}
		seen[c] = true
		terms = append(terms, c)
		if len(terms) == domain.MaxCandidateTerms {
			break
		}
	}

	return terms
}
