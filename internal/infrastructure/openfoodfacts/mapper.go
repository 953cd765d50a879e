package openfoodfacts

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/allergenlens/backend/internal/domain"
)

// productResponse is the body of GET /api/v2/product/{code}
type productResponse struct {
	Code    flexString   `json:"code"`
	Status  int          `json:"status"`
	Product *wireProduct `json:"product"`
}

// searchResponse is the body of the classic search endpoint
type searchResponse struct {
	Count    int            `json:"count"`
	Products []*wireProduct `json:"products"`
}

// wireProduct mirrors the projected product fields as OpenFoodFacts sends them
type wireProduct struct {
	Code                    flexString `json:"code"`
	ProductName             flexString `json:"product_name"`
	Brands                  flexString `json:"brands"`
	Allergens               flexString `json:"allergens"`
	AllergensTags           flexList   `json:"allergens_tags"`
	AllergensHierarchy      flexList   `json:"allergens_hierarchy"`
	Traces                  flexString `json:"traces"`
	TracesTags              flexList   `json:"traces_tags"`
	IngredientsText         flexString `json:"ingredients_text"`
	IngredientsTextEN       flexString `json:"ingredients_text_en"`
	IngredientsAnalysisTags flexList   `json:"ingredients_analysis_tags"`
	Link                    flexString `json:"link"`
	URL                     flexString `json:"url"`
}

func (w *wireProduct) toDomain() *domain.ProductRecord {
	return &domain.ProductRecord{
		Code:                    strings.TrimSpace(string(w.Code)),
		ProductName:             strings.TrimSpace(string(w.ProductName)),
		Brands:                  strings.TrimSpace(string(w.Brands)),
		Allergens:               strings.TrimSpace(string(w.Allergens)),
		AllergensTags:           []string(w.AllergensTags),
		AllergensHierarchy:      []string(w.AllergensHierarchy),
		Traces:                  strings.TrimSpace(string(w.Traces)),
		TracesTags:              []string(w.TracesTags),
		IngredientsText:         strings.TrimSpace(string(w.IngredientsText)),
		IngredientsTextEN:       strings.TrimSpace(string(w.IngredientsTextEN)),
		IngredientsAnalysisTags: []string(w.IngredientsAnalysisTags),
		Link:                    strings.TrimSpace(string(w.Link)),
		URL:                     strings.TrimSpace(string(w.URL)),
	}
}

// flexString accepts a JSON string, number, bool, list of strings or null.
// Codes occasionally arrive as numbers and brands as lists.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '[':
		var list flexList
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*f = flexString(strings.Join(list, ", "))
	case '{':
		*f = ""
	default:
		// numbers and booleans keep their literal form
		*f = flexString(data)
	}
	return nil
}

// flexList accepts a JSON list of scalars, a comma-separated string or null
type flexList []string

func (f *flexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = splitNonEmpty(s)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s flexString
		if err := s.UnmarshalJSON(item); err != nil {
			return err
		}
		if v := strings.TrimSpace(string(s)); v != "" {
			out = append(out, v)
		}
	}
	*f = out
	return nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
