package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCtxAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	defer SetLogger(prev)
	SetLogger(zerolog.New(&buf))

	ctx := ContextWithCorrelationID(context.Background(), "abc12345")
	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"abc12345"`) {
		t.Errorf("expected correlation id in output, got %s", out)
	}
}

func TestContextWithNewCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "keepme")
	ctx = ContextWithNewCorrelationID(ctx)
	if got := CorrelationIDFromContext(ctx); got != "keepme" {
		t.Errorf("expected existing id to survive, got %q", got)
	}

	fresh := ContextWithNewCorrelationID(context.Background())
	if got := CorrelationIDFromContext(fresh); len(got) != 8 {
		t.Errorf("expected 8-char generated id, got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"WARN":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"":         zerolog.InfoLevel,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
