package domain

import "strings"

// ProductRecord is a single food item as returned by OpenFoodFacts.
// Any field may be empty; consumers must degrade to default phrases.
type ProductRecord struct {
	Code                    string   `json:"code,omitempty"`
	ProductName             string   `json:"product_name,omitempty"`
	Brands                  string   `json:"brands,omitempty"`
	Allergens               string   `json:"allergens,omitempty"`
	AllergensTags           []string `json:"allergens_tags,omitempty"`
	AllergensHierarchy      []string `json:"allergens_hierarchy,omitempty"`
	Traces                  string   `json:"traces,omitempty"`
	TracesTags              []string `json:"traces_tags,omitempty"`
	IngredientsText         string   `json:"ingredients_text,omitempty"`
	IngredientsTextEN       string   `json:"ingredients_text_en,omitempty"`
	IngredientsAnalysisTags []string `json:"ingredients_analysis_tags,omitempty"`
	Link                    string   `json:"link,omitempty"`
	URL                     string   `json:"url,omitempty"`
}

// MatchType records how a product was found
type MatchType string

const (
	MatchTypeBarcode MatchType = "barcode"
	MatchTypeSearch  MatchType = "search"
)

// Match is a product actually returned by OpenFoodFacts plus how it was found
type Match struct {
	Product      *ProductRecord `json:"product"`
	Context      string         `json:"context"`
	MatchType    MatchType      `json:"matchType"`
	Candidate    string         `json:"candidate"`
	CanonicalURL string         `json:"canonicalUrl,omitempty"`
}

// Source is a displayable citation derived from a Match
type Source struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Code  string `json:"code,omitempty"`
}

// PrimaryBrand returns the first entry of the comma-separated brands field
func (p *ProductRecord) PrimaryBrand() string {
	if p == nil {
		return ""
	}
	first, _, _ := strings.Cut(p.Brands, ",")
	return strings.TrimSpace(first)
}
