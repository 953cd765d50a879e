package domain

import "errors"

var (
	// ErrProductNotFound is returned when no product matches a barcode or search term
	ErrProductNotFound = errors.New("product not found in OpenFoodFacts")

	// ErrInvalidRequest is returned when request parameters are invalid (e.g. empty query)
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrOpenFoodFactsFailure is returned when an OpenFoodFacts request fails
	ErrOpenFoodFactsFailure = errors.New("OpenFoodFacts request failed")

	// ErrLLMFailure is returned when a chat completion request fails
	ErrLLMFailure = errors.New("LLM request failed")
)
