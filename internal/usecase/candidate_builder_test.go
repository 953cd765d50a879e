package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateBuilder_ModelTermsFirst(t *testing.T) {
	b := NewCandidateBuilder(staticTerms{"Nutella Ferrero", `"Nutella"`}, nil)

	terms := b.Build(context.Background(), "nutella allergens")

	assert.Equal(t, []string{"Nutella Ferrero", "Nutella", "nutella allergens"}, terms)
}

func TestCandidateBuilder_DedupesCaseInsensitively(t *testing.T) {
	b := NewCandidateBuilder(staticTerms{"OREO THINS", "oreo"}, nil)

	terms := b.Build(context.Background(), "Oreo Thins")

	assert.Equal(t, []string{"OREO THINS", "oreo"}, terms)
}

func TestCandidateBuilder_CapsAtMaximum(t *testing.T) {
	b := NewCandidateBuilder(staticTerms{"t1", "t2", "t3", "t4", "t5"}, nil)

	terms := b.Build(context.Background(), "tell me about 'Nutella' hazelnut spread for allergies")

	assert.Len(t, terms, 6)
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5", "tell me about 'Nutella' hazelnut spread for allergies"}, terms)
}

func TestCandidateBuilder_NoGenerator(t *testing.T) {
	b := NewCandidateBuilder(nil, nil)

	terms := b.Build(context.Background(), "Kinder Bueno")

	assert.Equal(t, BuildFallbackCandidateTerms("Kinder Bueno"), terms)
}

func TestCandidateBuilder_EmptyModelTerms(t *testing.T) {
	b := NewCandidateBuilder(staticTerms{}, nil)

	assert.Equal(t, []string{"the"}, b.Build(context.Background(), "the"))
}

func TestCandidateBuilder_BlankQuery(t *testing.T) {
	b := NewCandidateBuilder(staticTerms{"ignored"}, nil)

	assert.Equal(t, []string{}, b.Build(context.Background(), " \t "))
}
