package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/moliya/internal/domain"
)

// NewGeminiGenerator creates a Gemini API client and returns its Models service.
func NewGeminiGenerator(ctx context.Context, apiKey string) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}
	return client.Models, nil
}

// GeminiOptions are shared by the resolver and advisor.
type GeminiOptions struct {
	Model   string
	Timeout time.Duration
	Window  int // advisor only
	Logger  zerolog.Logger
}

func (o GeminiOptions) model() string {
	if o.Model == "" {
		return DefaultModelName
	}
	return o.Model
}

func (o GeminiOptions) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// GeminiResolver classifies utterances with a JSON-schema constrained model call.
type GeminiResolver struct {
	gen  Generator
	opts GeminiOptions
}

// NewGeminiResolver creates a resolver on top of gen.
func NewGeminiResolver(gen Generator, opts GeminiOptions) *GeminiResolver {
	return &GeminiResolver{gen: gen, opts: opts}
}

// Resolve implements IntentResolver.
func (r *GeminiResolver) Resolve(ctx context.Context, req ResolveRequest) (domain.AIResponse, error) {
	ctx, cancel := r.opts.withTimeout(ctx)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(resolverInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	}

	resp, err := r.gen.GenerateContent(ctx, r.opts.model(), genai.Text(buildResolvePrompt(req)), cfg)
	if err != nil {
		return domain.AIResponse{}, fmt.Errorf("GeminiResolver.Resolve: generate content: %w", err)
	}
	if resp == nil {
		return domain.AIResponse{}, fmt.Errorf("GeminiResolver.Resolve: %w: nil response", ErrInvalidResponse)
	}

	rawText := resp.Text()
	out, err := ParseResponse(rawText)
	if err != nil {
		r.opts.Logger.Warn().Err(err).Str("raw_response", rawText).Msg("model output rejected")
		return domain.AIResponse{}, fmt.Errorf("GeminiResolver.Resolve: %w", err)
	}
	out.PersonName = canonicalName(out.PersonName, req.KnownPeople)
	return out, nil
}

// canonicalName returns the roster spelling of name when it matches case-insensitively.
func canonicalName(name string, known []string) string {
	if name == "" {
		return ""
	}
	for _, k := range known {
		if domain.SameName(k, name) {
			return k
		}
	}
	return name
}

// GeminiAdvisor generates a short tip from the head of the ledger.
type GeminiAdvisor struct {
	gen  Generator
	opts GeminiOptions
}

// NewGeminiAdvisor creates an advisor on top of gen.
func NewGeminiAdvisor(gen Generator, opts GeminiOptions) *GeminiAdvisor {
	if opts.Window <= 0 {
		opts.Window = AdviceWindow
	}
	return &GeminiAdvisor{gen: gen, opts: opts}
}

// Advise implements AdviceGenerator.
func (a *GeminiAdvisor) Advise(ctx context.Context, txs []domain.Transaction) (string, error) {
	ctx, cancel := a.opts.withTimeout(ctx)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(adviceInstruction, genai.RoleUser),
	}
	prompt := buildAdvicePrompt(Window(txs, a.opts.Window))

	resp, err := a.gen.GenerateContent(ctx, a.opts.model(), genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GeminiAdvisor.Advise: generate content: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Text()), nil
}
