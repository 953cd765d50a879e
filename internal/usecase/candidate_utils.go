package usecase

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/allergenlens/backend/internal/domain"
)

var (
	// Straight double quotes, back-ticks and their typographic forms
	quoteCharsRegex = regexp.MustCompile("[\"`“”]")

	// A term starts with a letter or digit; the rest is limited to a small punctuation set
	candidateTermRegex = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} '\-()/.,&]*$`)

	// Innermost {...} blocks; the model may reason in prose before emitting JSON
	braceBlockRegex = regexp.MustCompile(`\{[^{}]*\}`)
)

// candidateShapeSchema accepts either a bare array or an object carrying a terms array.
// Item-level filtering and the count bounds are applied after validation.
var candidateShapeSchema = mustCompileSchema(map[string]interface{}{
	"oneOf": []interface{}{
		map[string]interface{}{"type": "array"},
		map[string]interface{}{
			"type":     "object",
			"required": []string{"terms"},
			"properties": map[string]interface{}{
				"terms": map[string]interface{}{"type": "array"},
			},
		},
	},
})

func mustCompileSchema(schema map[string]interface{}) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		panic("usecase: invalid JSON schema: " + err.Error())
	}
	return compiled
}

// NormalizeCandidateTerm strips quote characters, collapses whitespace runs and trims
func NormalizeCandidateTerm(term string) string {
	if term == "" {
		return ""
	}
	cleaned := quoteCharsRegex.ReplaceAllString(term, "")
	cleaned = whitespaceRunPattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// ParseCandidateResponse extracts a term list from a model's raw reply.
// The whole reply is tried as JSON first, then every {...} block from last to first.
// A result with fewer than MinCandidateTerms valid terms counts as a failure.
func ParseCandidateResponse(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{}
	}

	if terms := parseCandidateDocument(trimmed); terms != nil {
		return terms
	}

	blocks := braceBlockRegex.FindAllString(trimmed, -1)
	for i := len(blocks) - 1; i >= 0; i-- {
		if terms := parseCandidateDocument(blocks[i]); terms != nil {
			return terms
		}
	}

	return []string{}
}

// parseCandidateDocument returns nil unless raw decodes to a valid term list
func parseCandidateDocument(raw string) []string {
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}

	result, err := candidateShapeSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil || !result.Valid() {
		return nil
	}

	var items []interface{}
	switch v := doc.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		items, _ = v["terms"].([]interface{})
	}

	terms := collectCandidateTerms(items)
	if len(terms) < domain.MinCandidateTerms {
		return nil
	}
	return terms
}

func collectCandidateTerms(items []interface{}) []string {
	seen := make(map[string]bool, len(items))
	terms := make([]string, 0, len(items))

	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		term := NormalizeCandidateTerm(s)
		if term == "" || !candidateTermRegex.MatchString(term) {
			continue
		}
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, term)
		if len(terms) == domain.MaxCandidateTerms {
			break
		}
	}

	return terms
}
