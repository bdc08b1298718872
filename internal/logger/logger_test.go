package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log := New()
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestNewWithOptions_JSONLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{Level: "warn", Format: "json", Output: buf})

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len(), "info must be filtered at warn level")

	log.Warn().Str("person_name", "Ali").Msg("kept")
	out := buf.String()
	assert.Contains(t, out, `"person_name":"Ali"`)
	assert.Contains(t, out, `"message":"kept"`)
}

func TestNewWithOptions_Console(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{Output: buf})
	log.Info().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	FromContext(ctx).Info().Msg("test")
	assert.NotZero(t, buf.Len())
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestWithFieldsAndComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := Component(WithFields(NewWithWriter(buf), map[string]interface{}{
		"transaction_id": "123",
	}), "ledger")

	log.Info().Msg("test message")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"transaction_id":"123"`)
	assert.Contains(t, out, `"component":"ledger"`)
}
