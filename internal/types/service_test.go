package types

import (
	"testing"
	"time"
)

func TestServiceConfigValidate(t *testing.T) {
	valid := ServiceConfig{ID: "a", Provider: ProviderOpenAI, Capability: CapChat}

	tests := []struct {
		name    string
		mutate  func(*ServiceConfig)
		wantErr bool
	}{
		{"valid", func(*ServiceConfig) {}, false},
		{"missing id", func(c *ServiceConfig) { c.ID = "" }, true},
		{"bad provider", func(c *ServiceConfig) { c.Provider = "acme" }, true},
		{"bad capability", func(c *ServiceConfig) { c.Capability = "video" }, true},
		{"negative retries", func(c *ServiceConfig) { c.MaxRetries = -1 }, true},
		{"negative timeout", func(c *ServiceConfig) { c.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid.Clone()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServiceConfigClone_DoesNotShareParameters(t *testing.T) {
	orig := ServiceConfig{ID: "a", Parameters: map[string]any{"temperature": 0.7}}
	cp := orig.Clone()
	cp.Parameters["temperature"] = 0.1

	if orig.Parameters["temperature"] != 0.7 {
		t.Errorf("clone mutated original parameters: %v", orig.Parameters)
	}
}

func TestServiceUpdateApply(t *testing.T) {
	orig := ServiceConfig{ID: "a", Priority: 1, Enabled: false, FallbackServiceID: "b"}
	prio := 9
	enabled := true
	empty := ""

	got := ServiceUpdate{Priority: &prio, Enabled: &enabled, FallbackServiceID: &empty}.Apply(orig)

	if got.ID != "a" {
		t.Errorf("expected id preserved, got %s", got.ID)
	}
	if got.Priority != 9 || !got.Enabled {
		t.Errorf("update not applied: %+v", got)
	}
	if got.FallbackServiceID != "" {
		t.Errorf("expected fallback cleared, got %q", got.FallbackServiceID)
	}
	if orig.Priority != 1 {
		t.Error("Apply must not mutate the original")
	}
}

func TestEffectiveTimeout(t *testing.T) {
	if got := (ServiceConfig{}).EffectiveTimeout(); got != DefaultServiceTimeout {
		t.Errorf("expected default timeout, got %s", got)
	}
	if got := (ServiceConfig{Timeout: time.Second}).EffectiveTimeout(); got != time.Second {
		t.Errorf("expected 1s, got %s", got)
	}
}

func TestMergeParameters(t *testing.T) {
	defaults := map[string]any{"temperature": 0.7, "max_tokens": 100}
	merged := MergeParameters(defaults, map[string]any{"temperature": 0.2})

	if merged["temperature"] != 0.2 {
		t.Errorf("expected override to win, got %v", merged["temperature"])
	}
	if merged["max_tokens"] != 100 {
		t.Errorf("expected default kept, got %v", merged["max_tokens"])
	}
	if defaults["temperature"] != 0.7 {
		t.Error("MergeParameters must not mutate defaults")
	}
}
