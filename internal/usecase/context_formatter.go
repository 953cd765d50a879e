package usecase

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/allergenlens/backend/internal/domain"
)

const (
	maxIngredientsRunes = 600
	truncationMarker    = "…"

	unknownProductName = "Unknown product"
	noAllergensListed  = "none listed in OpenFoodFacts"

	packagingReminder = "Always confirm allergens against the physical product packaging; recipes and labels change and database entries can lag behind."
)

// Taxonomy language prefixes such as "en:" or "fr:"
var tagLanguagePrefixPattern = regexp.MustCompile(`\b[a-z]{2,3}:`)

// ContextFormatter renders product records into grounding text with a resolved product-page URL
type ContextFormatter struct {
	urls domain.ProductURLResolver
}

// NewContextFormatter creates a formatter. A nil resolver omits the product-page line.
func NewContextFormatter(urls domain.ProductURLResolver) *ContextFormatter {
	return &ContextFormatter{urls: urls}
}

// Format resolves the canonical URL for product and renders its context block
func (f *ContextFormatter) Format(ctx context.Context, product *domain.ProductRecord) (string, string) {
	var canonicalURL string
	if f.urls != nil && product != nil {
		canonicalURL = f.urls.Resolve(ctx, product)
	}
	return FormatProductContext(product, canonicalURL), canonicalURL
}

// FormatProductContext renders a product record as newline-separated grounding text.
// Lines for missing fields are omitted; the product line and the packaging reminder are always present.
func FormatProductContext(product *domain.ProductRecord, canonicalURL string) string {
	if product == nil {
		product = &domain.ProductRecord{}
	}

	var lines []string

	name := strings.TrimSpace(product.ProductName)
	if name == "" {
		name = unknownProductName
	}
	productLine := "Product: " + name
	if brands := strings.TrimSpace(product.Brands); brands != "" {
		productLine += " (" + brands + ")"
	}
	lines = append(lines, productLine)

	if code := strings.TrimSpace(product.Code); code != "" {
		lines = append(lines, "Barcode: "+code)
	}

	allergens := cleanTagText(reportedAllergens(product))
	if allergens == "" {
		allergens = noAllergensListed
	}
	lines = append(lines, "Reported allergens: "+allergens)

	traces := cleanTagText(strings.Join(product.TracesTags, ","))
	if traces == "" {
		traces = cleanTagText(product.Traces)
	}
	if traces != "" {
		lines = append(lines, "Possible traces: "+traces)
	}

	if analysis := cleanTagText(strings.Join(product.IngredientsAnalysisTags, ",")); analysis != "" {
		lines = append(lines, "Ingredient analysis tags: "+analysis)
	}

	ingredients := strings.TrimSpace(product.IngredientsText)
	if ingredients == "" {
		ingredients = strings.TrimSpace(product.IngredientsTextEN)
	}
	if ingredients != "" {
		lines = append(lines, "Ingredients summary: "+truncateRunes(ingredients, maxIngredientsRunes))
	}

	canonicalURL = strings.TrimSpace(canonicalURL)
	if canonicalURL != "" {
		lines = append(lines, "OpenFoodFacts page: "+canonicalURL)
	}

	if link := productLink(product); link != "" && link != canonicalURL {
		lines = append(lines, "Additional source: "+link)
	}

	lines = append(lines, packagingReminder)

	return strings.Join(lines, "\n")
}

// reportedAllergens prefers the tag list, then the hierarchy, then the raw string
func reportedAllergens(p *domain.ProductRecord) string {
	if len(p.AllergensTags) > 0 {
		return strings.Join(p.AllergensTags, ",")
	}
	if len(p.AllergensHierarchy) > 0 {
		return strings.Join(p.AllergensHierarchy, ",")
	}
	return p.Allergens
}

// productLink is the record's own link, falling back to its database url
func productLink(p *domain.ProductRecord) string {
	if link := strings.TrimSpace(p.Link); link != "" {
		return link
	}
	return strings.TrimSpace(p.URL)
}

// cleanTagText turns "en:milk,en:tree_nuts" into "milk, tree nuts"
func cleanTagText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	cleaned := tagLanguagePrefixPattern.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")

	parts := strings.Split(cleaned, ",")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = whitespaceRunPattern.ReplaceAllString(strings.TrimSpace(part), " ")
		if part != "" {
			kept = append(kept, part)
		}
	}

	return strings.Join(kept, ", ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + truncationMarker
}
