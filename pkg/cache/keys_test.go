package cache

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"simple", "render:abc", false},
		{"empty", "", true},
		{"max length", strings.Repeat("k", MaxKeyLength), false},
		{"too long", strings.Repeat("k", MaxKeyLength+1), true},
		{"control character", "a\x00b", true},
		{"space", "a b", true},
		{"trailing newline", "key\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestKeyPattern_Build(t *testing.T) {
	kp := NewKeyPattern("portal", "")
	if got := kp.Build(); got != "portal" {
		t.Errorf("Expected prefix only, got %q", got)
	}
	if got := kp.Build("render", "v1"); got != "portal:render:v1" {
		t.Errorf("Expected portal:render:v1, got %q", got)
	}

	kp = NewKeyPattern("a", "/")
	if got := kp.Build("b"); got != "a/b" {
		t.Errorf("Expected a/b, got %q", got)
	}
}

func TestKeyPattern_ContentKey(t *testing.T) {
	kp := NewKeyPattern("render", ":")

	key := kp.ContentKey("# Title")
	if key != kp.ContentKey("# Title") {
		t.Error("Expected stable key for equal content")
	}
	if key == kp.ContentKey("# Title ") {
		t.Error("Expected different key for different content")
	}
	if !strings.HasPrefix(key, "render:") || len(key) != len("render:")+64 {
		t.Errorf("Unexpected key shape %q", key)
	}
	if err := ValidateKey(key); err != nil {
		t.Errorf("Content key must be valid: %v", err)
	}
}
