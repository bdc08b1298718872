package ai

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moliya/internal/domain"
)

const (
	// FallbackMessage is shown whenever the resolver cannot produce a usable answer.
	FallbackMessage = "Tushunishda xatolik bo'ldi, iltimos aniqroq yozing."

	AdviceErrorFallback = "Moliya - baraka asosi!"
	AdviceEmptyFallback = "Xarajatlarni nazorat qiling."
	// AdviceNoData is shown while the ledger is empty; no model call is made.
	AdviceNoData = "Hozircha ma'lumotlar yo'q. Birinchi xarajatingizni yozing va men sizga aqlli tavsiyalar beraman!"
)

// FallbackResponse is the contract's guaranteed answer on failure.
func FallbackResponse() domain.AIResponse {
	return domain.AIResponse{
		Intent:  domain.IntentClarification,
		Message: FallbackMessage,
	}
}

// SafeResolver never returns an error: any failure becomes FallbackResponse.
type SafeResolver struct {
	next   IntentResolver
	logger zerolog.Logger
}

func NewSafeResolver(next IntentResolver, logger zerolog.Logger) *SafeResolver {
	return &SafeResolver{next: next, logger: logger}
}

func (s *SafeResolver) Resolve(ctx context.Context, req ResolveRequest) (domain.AIResponse, error) {
	resp, err := s.next.Resolve(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("intent resolution failed, using fallback")
		return FallbackResponse(), nil
	}
	if !resp.Intent.Valid() || strings.TrimSpace(resp.Message) == "" {
		s.logger.Warn().Str("intent", string(resp.Intent)).Msg("resolver broke response contract, using fallback")
		return FallbackResponse(), nil
	}
	return resp, nil
}

// AdviceOrFallback returns text, or the fixed fallback when err is set or
// text is blank.
func AdviceOrFallback(text string, err error) string {
	if err != nil {
		return AdviceErrorFallback
	}
	if strings.TrimSpace(text) == "" {
		return AdviceEmptyFallback
	}
	return text
}

// SafeAdvisor never returns an error and never returns an empty string.
type SafeAdvisor struct {
	next   AdviceGenerator
	logger zerolog.Logger
}

func NewSafeAdvisor(next AdviceGenerator, logger zerolog.Logger) *SafeAdvisor {
	return &SafeAdvisor{next: next, logger: logger}
}

// Text is Advise without the error result.
func (s *SafeAdvisor) Text(ctx context.Context, txs []domain.Transaction) string {
	text, err := s.next.Advise(ctx, txs)
	if err != nil {
		s.logger.Warn().Err(err).Msg("advice generation failed, using fallback")
	}
	return AdviceOrFallback(text, err)
}

func (s *SafeAdvisor) Advise(ctx context.Context, txs []domain.Transaction) (string, error) {
	return s.Text(ctx, txs), nil
}
