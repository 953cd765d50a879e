package usecase

import (
	"strings"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/infrastructure/openfoodfacts"
)

// BuildSourcesFromMatch returns the citation for a match, or an empty list when
// there is no product or no URL can be derived for it. It never returns nil.
func BuildSourcesFromMatch(match *domain.Match) []domain.Source {
	if match == nil || match.Product == nil {
		return []domain.Source{}
	}

	product := match.Product
	code := strings.TrimSpace(product.Code)

	sourceURL := productLink(product)
	if sourceURL == "" {
		sourceURL = strings.TrimSpace(match.CanonicalURL)
	}
	if sourceURL == "" {
		sourceURL = openfoodfacts.GenericProductURL(code)
	}
	if sourceURL == "" {
		return []domain.Source{}
	}

	return []domain.Source{{
		Label: sourceLabel(product),
		URL:   sourceURL,
		Code:  code,
	}}
}

func sourceLabel(p *domain.ProductRecord) string {
	name := strings.TrimSpace(p.ProductName)
	brand := p.PrimaryBrand()
	code := strings.TrimSpace(p.Code)

	switch {
	case name != "" && brand != "":
		return name + " – " + brand
	case name != "":
		return name
	case brand != "":
		return brand + " (OpenFoodFacts)"
	case code != "":
		return "OpenFoodFacts product " + code
	default:
		return "OpenFoodFacts product entry"
	}
}
