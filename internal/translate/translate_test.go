package translate

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/raido/internal/apperr"
)

func TestParseReply(t *testing.T) {
	got, err := ParseReply("Here you go:\n[\"Bonjour\", \"Le monde\"]\n", 2)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if got[0] != "Bonjour" || got[1] != "Le monde" {
		t.Errorf("got = %v", got)
	}
}

func TestParseReplyRejectsWrongCount(t *testing.T) {
	if _, err := ParseReply(`["a"]`, 2); err == nil {
		t.Error("expected count mismatch error")
	}
	if _, err := ParseReply("no array here", 1); err == nil {
		t.Error("expected missing array error")
	}
	if _, err := ParseReply(`[1]`, 1); err == nil {
		t.Error("expected non-string error")
	}
}

func TestIdentity(t *testing.T) {
	in := []string{"a", "b"}
	got, err := Identity{}.Translate(context.Background(), in, "en", "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	got[0] = "changed"
	if in[0] != "a" {
		t.Error("identity must not alias its input")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil, "en", "fr"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("empty texts err = %v", err)
	}
	if err := Validate([]string{"x"}, "", "fr"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("missing from err = %v", err)
	}
	if err := Validate([]string{"x"}, "en", "fr"); err != nil {
		t.Errorf("valid request err = %v", err)
	}
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	if _, err := NewAnthropic("", ""); err == nil {
		t.Error("expected error without api key")
	}
}
