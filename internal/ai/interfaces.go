package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/dvloznov/moliya/internal/domain"
)

// ResolveRequest is one user utterance plus the names the resolver may match against.
type ResolveRequest struct {
	Text        string
	KnownPeople []string
}

// IntentResolver turns free text into a structured response.
type IntentResolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (domain.AIResponse, error)
}

// AdviceGenerator produces a one-sentence tip from recent transactions.
type AdviceGenerator interface {
	Advise(ctx context.Context, txs []domain.Transaction) (string, error)
}

// Generator is the subset of the genai Models service used here.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var (
	// ErrUnavailable is returned when no model is configured.
	ErrUnavailable = errors.New("ai: model not configured")
	// ErrInvalidResponse is returned when model output breaks the response contract.
	ErrInvalidResponse = errors.New("ai: invalid model response")
)

// Unavailable implements both ports and always fails. Wrapped in the Safe
// adapters it yields the fixed fallback texts.
type Unavailable struct{}

func (Unavailable) Resolve(context.Context, ResolveRequest) (domain.AIResponse, error) {
	return domain.AIResponse{}, ErrUnavailable
}

func (Unavailable) Advise(context.Context, []domain.Transaction) (string, error) {
	return "", ErrUnavailable
}
