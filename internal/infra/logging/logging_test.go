//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"music-taste-agent/internal/config"
)

func TestWithAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "tr-1")
	ctx = WithAgentID(ctx, "user_default")
	ctx = WithChatID(ctx, 42)

	With(ctx, &base).Info().Msg("hello")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	if got["trace_id"] != "tr-1" || got["agent_id"] != "user_default" || got["chat_id"] != float64(42) {
		t.Fatalf("unexpected fields: %v", got)
	}
}

func TestRedact(t *testing.T) {
	if Redact("short", false) != "***" {
		t.Error("short strings must be fully masked")
	}
	if got := Redact("I love upbeat indie rock", false); got != "I lo...ck" {
		t.Errorf("unexpected preview %q", got)
	}
	if Redact("secret", true) != "secret" {
		t.Error("dev mode must not redact")
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(config.LogConfig{Level: "debug", Format: "json"}, false, &buf)
	l.Debug().Str("k", "v").Msg("m")
	if !bytes.Contains(buf.Bytes(), []byte(`"k":"v"`)) {
		t.Fatalf("expected json output, got %s", buf.String())
	}
}
