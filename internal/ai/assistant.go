package ai

import (
	"context"
	"errors"
)

// ErrUnavailable means no provider is configured, e.g. the API key is missing.
var ErrUnavailable = errors.New("ai provider is not available")

// SuggestRequest asks for a digital activity that would evidence one
// requirement inside one lesson activity.
type SuggestRequest struct {
	Subject     string
	Activity    string
	Text        string
	Requirement string
}

type Suggestion struct {
	Activity string
	Tool     string
	Product  string
	Raw      string
}

// Suggester enriches a heuristic match with a generated activity and product.
type Suggester interface {
	Suggest(ctx context.Context, req SuggestRequest) (*Suggestion, error)
}

// RecommendRequest asks for competency codes for a whole lesson. Catalog
// lists the allowed codes as "code: requirement" lines.
type RecommendRequest struct {
	Subject string
	Tier    string
	Text    string
	Catalog []string
}

type Recommendation struct {
	Code     string
	Activity string
	Tool     string
	Product  string
}

// Recommender proposes competency codes for a whole lesson.
type Recommender interface {
	Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error)
}
