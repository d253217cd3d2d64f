package types

import "testing"

func TestParseCapability(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"chat", true},
		{"completion", true},
		{"embedding", true},
		{"image", true},
		{"audio", true},
		{"multimodal", true},
		{"CHAT", false},
		{"video", false},
		{"", false},
	}

	for _, tt := range tests {
		_, ok := ParseCapability(tt.input)
		if ok != tt.valid {
			t.Errorf("ParseCapability(%q) valid = %v, want %v", tt.input, ok, tt.valid)
		}
	}
}

func TestCapabilityCompatibleWith(t *testing.T) {
	tests := []struct {
		a, b Capability
		want bool
	}{
		{CapChat, CapChat, true},
		{CapChat, CapCompletion, true},
		{CapMultimodal, CapChat, true},
		{CapEmbedding, CapEmbedding, true},
		{CapEmbedding, CapChat, false},
		{CapImage, CapAudio, false},
		{CapAudio, CapMultimodal, false},
	}

	for _, tt := range tests {
		if got := tt.a.CompatibleWith(tt.b); got != tt.want {
			t.Errorf("%s.CompatibleWith(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseProviderKind(t *testing.T) {
	for _, s := range []string{"openai", "anthropic", "google", "azure", "aws", "self-hosted", "custom"} {
		if _, ok := ParseProviderKind(s); !ok {
			t.Errorf("ParseProviderKind(%q) should be valid", s)
		}
	}
	if _, ok := ParseProviderKind("OpenAI"); ok {
		t.Error("provider kinds are case sensitive")
	}
}
