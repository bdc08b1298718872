package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dvloznov/moliya/internal/domain"
)

// MockGenerator is a stub for the genai Models service.
type MockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *MockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func replying(text string) *MockGenerator {
	return &MockGenerator{
		GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(text), nil
		},
	}
}

func promptText(contents []*genai.Content) string {
	if len(contents) == 0 || len(contents[0].Parts) == 0 {
		return ""
	}
	return contents[0].Parts[0].Text
}

func TestParseResponse(t *testing.T) {
	t.Run("debt with person", func(t *testing.T) {
		r, err := ParseResponse(`{"intent":"debt","amount":100000,"type":"Qarz Berdim","category":"Qarz","paymentMethod":null,"personName":" Ali ","message":"Aliga 100 000 berdingiz"}`)
		require.NoError(t, err)
		assert.Equal(t, domain.IntentDebt, r.Intent)
		require.NotNil(t, r.Amount)
		assert.Equal(t, int64(100000), *r.Amount)
		assert.Equal(t, domain.KindDebtGiven, r.Kind)
		assert.Equal(t, "Ali", r.PersonName)
		assert.Empty(t, r.PaymentMethod)
		assert.Empty(t, r.NeedsClarification)
	})

	t.Run("fenced transaction needing payment method", func(t *testing.T) {
		raw := "```json\n{\"intent\":\"transaction\",\"amount\":50000.4,\"type\":\"Xarajat\",\"category\":\"Ovqat\",\"message\":\"Tushlik\",\"needsClarification\":\"paymentMethod\"}\n```"
		r, err := ParseResponse(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), *r.Amount)
		assert.Equal(t, domain.ClarifyPaymentMethod, r.NeedsClarification)
	})

	t.Run("payment present clears model request", func(t *testing.T) {
		r, err := ParseResponse(`{"intent":"transaction","paymentMethod":"karta","message":"ok","needsClarification":"paymentMethod"}`)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentCard, r.PaymentMethod)
		assert.Empty(t, r.NeedsClarification)
	})

	t.Run("debt without person needs person", func(t *testing.T) {
		r, err := ParseResponse(`{"intent":"debt","amount":"300","type":"Qarz Oldim","message":"Kimdan?"}`)
		require.NoError(t, err)
		assert.Equal(t, int64(300), *r.Amount)
		assert.Equal(t, domain.ClarifyPersonName, r.NeedsClarification)
	})

	t.Run("query carries no clarification", func(t *testing.T) {
		r, err := ParseResponse(`{"intent":"Query","message":"Balansingiz...","needsClarification":"paymentMethod"}`)
		require.NoError(t, err)
		assert.Equal(t, domain.IntentQuery, r.Intent)
		assert.Nil(t, r.Amount)
		assert.Empty(t, r.NeedsClarification)
	})

	t.Run("oversized amount becomes zero", func(t *testing.T) {
		r, err := ParseResponse(`{"intent":"transaction","amount":1e19,"type":"Xarajat","message":"ok"}`)
		require.NoError(t, err)
		require.NotNil(t, r.Amount)
		assert.Equal(t, int64(0), *r.Amount)
	})

	t.Run("unknown type dropped", func(t *testing.T) {
		r, err := ParseResponse(`{"intent":"transaction","type":"Sovg'a","message":"ok"}`)
		require.NoError(t, err)
		assert.Empty(t, r.Kind)
	})

	rejects := map[string]string{
		"malformed":       `{"intent":`,
		"empty":           "   ",
		"missing intent":  `{"message":"hi"}`,
		"unknown intent":  `{"intent":"transfer","message":"hi"}`,
		"missing message": `{"intent":"query"}`,
		"blank message":   `{"intent":"query","message":"  "}`,
	}
	for name, raw := range rejects {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := ParseResponse(raw)
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"single line fence", "```json {\"a\":1}```", `{"a":1}`},
		{"surrounding text", "Mana javob: {\"a\":1} tamom", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.in))
		})
	}
}

func TestGeminiResolver_Resolve(t *testing.T) {
	var gotModel, gotPrompt string
	var gotConfig *genai.GenerateContentConfig
	gen := &MockGenerator{
		GenerateContentFunc: func(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel, gotPrompt, gotConfig = model, promptText(contents), config
			return textResponse(`{"intent":"debt","amount":100000,"type":"Qarz Berdim","personName":"ali","message":"Aliga berdingiz"}`), nil
		},
	}

	r := NewGeminiResolver(gen, GeminiOptions{Model: "test-model", Timeout: time.Second})
	resp, err := r.Resolve(context.Background(), ResolveRequest{
		Text:        "Aliga 100 ming berdim",
		KnownPeople: []string{"Ali", "Vali"},
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", gotModel)
	assert.Contains(t, gotPrompt, "Aliga 100 ming berdim")
	assert.Contains(t, gotPrompt, "Mavjud odamlar: Ali, Vali")
	require.NotNil(t, gotConfig)
	assert.Equal(t, "application/json", gotConfig.ResponseMIMEType)
	assert.Equal(t, []string{"intent", "message"}, gotConfig.ResponseSchema.Required)

	assert.Equal(t, "Ali", resp.PersonName, "roster spelling wins")
	assert.Equal(t, domain.KindDebtGiven, resp.Kind)
}

func TestGeminiResolver_DefaultModelAndErrors(t *testing.T) {
	var gotModel string
	gen := &MockGenerator{
		GenerateContentFunc: func(_ context.Context, model string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			return nil, errors.New("quota")
		},
	}
	_, err := NewGeminiResolver(gen, GeminiOptions{}).Resolve(context.Background(), ResolveRequest{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.Equal(t, DefaultModelName, gotModel)

	_, err = NewGeminiResolver(replying("not json"), GeminiOptions{}).Resolve(context.Background(), ResolveRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGeminiResolver_Timeout(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	r := NewSafeResolver(NewGeminiResolver(gen, GeminiOptions{Timeout: 10 * time.Millisecond}), zerolog.Nop())

	resp, err := r.Resolve(context.Background(), ResolveRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, FallbackResponse(), resp)
}

func TestSafeResolver(t *testing.T) {
	tests := []struct {
		name string
		gen  *MockGenerator
		want domain.Intent
	}{
		{"malformed output", replying("{"), domain.IntentClarification},
		{"missing intent", replying(`{"message":"x"}`), domain.IntentClarification},
		{"valid", replying(`{"intent":"query","message":"ok"}`), domain.IntentQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSafeResolver(NewGeminiResolver(tt.gen, GeminiOptions{}), zerolog.Nop())
			resp, err := r.Resolve(context.Background(), ResolveRequest{Text: "x"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Intent)
			assert.NotEmpty(t, resp.Message)
		})
	}

	t.Run("unavailable", func(t *testing.T) {
		resp, err := NewSafeResolver(Unavailable{}, zerolog.Nop()).Resolve(context.Background(), ResolveRequest{})
		require.NoError(t, err)
		assert.Equal(t, FallbackMessage, resp.Message)
	})
}

func TestGeminiAdvisor_UsesMostRecentWindow(t *testing.T) {
	var gotPrompt string
	gen := &MockGenerator{
		GenerateContentFunc: func(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotPrompt = promptText(contents)
			return textResponse("  Tejang!  "), nil
		},
	}

	txs := []domain.Transaction{
		{Kind: domain.KindExpense, Amount: 7},
		{Kind: domain.KindIncome, Amount: 6},
		{Kind: domain.KindExpense, Amount: 5},
		{Kind: domain.KindExpense, Amount: 4},
		{Kind: domain.KindExpense, Amount: 3},
		{Kind: domain.KindExpense, Amount: 2},
	}
	text, err := NewGeminiAdvisor(gen, GeminiOptions{}).Advise(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, "Tejang!", text)
	assert.Equal(t, "Tranzaksiyalar: Xarajat: 7, Daromad: 6, Xarajat: 5, Xarajat: 4, Xarajat: 3. Qisqa maslahat.", gotPrompt)
}

func TestSafeAdvisor(t *testing.T) {
	txs := []domain.Transaction{{Kind: domain.KindExpense, Amount: 1}}

	text, err := NewSafeAdvisor(Unavailable{}, zerolog.Nop()).Advise(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, AdviceErrorFallback, text)

	text, err = NewSafeAdvisor(NewGeminiAdvisor(replying(""), GeminiOptions{}), zerolog.Nop()).Advise(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, AdviceEmptyFallback, text)

	assert.Equal(t, AdviceErrorFallback, NewSafeAdvisor(Unavailable{}, zerolog.Nop()).Text(context.Background(), txs))
}

func TestAdviceOrFallback(t *testing.T) {
	assert.Equal(t, "Tejang", AdviceOrFallback("Tejang", nil))
	assert.Equal(t, AdviceEmptyFallback, AdviceOrFallback(" \n", nil))
	assert.Equal(t, AdviceErrorFallback, AdviceOrFallback("partial", errors.New("timeout")))
}

func TestWindow(t *testing.T) {
	txs := make([]domain.Transaction, 3)
	assert.Len(t, Window(txs, 5), 3)
	assert.Len(t, Window(txs, 2), 2)
	assert.Len(t, Window(txs, 0), 3)
}
