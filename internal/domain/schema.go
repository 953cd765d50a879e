package domain

import "regexp"

// Candidate term list bounds declared by CandidateTermsSchema
const (
	MinCandidateTerms = 1
	MaxCandidateTerms = 6
)

// ProductFields is the projection requested from OpenFoodFacts on every lookup
var ProductFields = []string{
	"code",
	"product_name",
	"brands",
	"allergens",
	"allergens_tags",
	"allergens_hierarchy",
	"traces",
	"traces_tags",
	"ingredients_text",
	"ingredients_text_en",
	"ingredients_analysis_tags",
	"link",
	"url",
}

// BarcodePattern matches an 8 to 14 digit EAN/UPC-style code
var BarcodePattern = regexp.MustCompile(`\b\d{8,14}\b`)

// CandidateTermsSchema is the JSON schema the term-extraction model must answer with
var CandidateTermsSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"terms": map[string]interface{}{
			"type":     "array",
			"minItems": MinCandidateTerms,
			"maxItems": MaxCandidateTerms,
			"items": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
			},
		},
	},
	"required":             []string{"terms"},
	"additionalProperties": false,
}
