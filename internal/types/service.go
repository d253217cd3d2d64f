package types

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"
)

// DefaultServiceTimeout bounds a provider call when a service sets no timeout.
const DefaultServiceTimeout = 30 * time.Second

// ServiceConfig is one configured provider endpoint.
type ServiceConfig struct {
	ID                string         `yaml:"id" json:"id"`
	Name              string         `yaml:"name" json:"name,omitempty"`
	Provider          ProviderKind   `yaml:"provider" json:"provider"`
	Capability        Capability     `yaml:"capability" json:"capability"`
	Endpoint          string         `yaml:"endpoint" json:"endpoint"`
	Credential        string         `yaml:"credential" json:"-"`
	Model             string         `yaml:"model" json:"model"`
	Parameters        map[string]any `yaml:"parameters" json:"parameters,omitempty"`
	Enabled           bool           `yaml:"enabled" json:"enabled"`
	Priority          int            `yaml:"priority" json:"priority"`
	Timeout           time.Duration  `yaml:"timeout" json:"timeout"`
	MaxRetries        int            `yaml:"max_retries" json:"max_retries"`
	FallbackServiceID string         `yaml:"fallback_service_id" json:"fallback_service_id,omitempty"`
}

// Clone returns a copy that shares no mutable state with c.
func (c ServiceConfig) Clone() ServiceConfig {
	c.Parameters = maps.Clone(c.Parameters)
	return c
}

// EffectiveTimeout returns the configured timeout or the default.
func (c ServiceConfig) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultServiceTimeout
	}
	return c.Timeout
}

// HasCredential reports whether a credential handle is configured.
func (c ServiceConfig) HasCredential() bool { return c.Credential != "" }

// Validate checks the fields that do not depend on other services.
func (c ServiceConfig) Validate() error {
	if c.ID == "" {
		return errors.New("service id is required")
	}
	if _, ok := ParseProviderKind(string(c.Provider)); !ok {
		return fmt.Errorf("service %s: unknown provider %q", c.ID, c.Provider)
	}
	if _, ok := ParseCapability(string(c.Capability)); !ok {
		return fmt.Errorf("service %s: unknown capability %q", c.ID, c.Capability)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("service %s: max_retries must not be negative", c.ID)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("service %s: timeout must not be negative", c.ID)
	}
	return nil
}

// LogValue keeps the credential out of every log line.
func (c ServiceConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", c.ID),
		slog.String("provider", string(c.Provider)),
		slog.String("capability", string(c.Capability)),
		slog.String("model", c.Model),
		slog.Bool("enabled", c.Enabled),
		slog.Int("priority", c.Priority),
		slog.String("fallback", c.FallbackServiceID),
	)
}

// ServiceUpdate is a partial ServiceConfig; nil fields are left unchanged.
type ServiceUpdate struct {
	Name              *string        `json:"name,omitempty"`
	Provider          *ProviderKind  `json:"provider,omitempty"`
	Capability        *Capability    `json:"capability,omitempty"`
	Endpoint          *string        `json:"endpoint,omitempty"`
	Credential        *string        `json:"credential,omitempty"`
	Model             *string        `json:"model,omitempty"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	Enabled           *bool          `json:"enabled,omitempty"`
	Priority          *int           `json:"priority,omitempty"`
	Timeout           *time.Duration `json:"timeout,omitempty"`
	MaxRetries        *int           `json:"max_retries,omitempty"`
	FallbackServiceID *string        `json:"fallback_service_id,omitempty"`
}

// Apply returns c with the non-nil fields of u applied. The id never changes.
// Parameters are replaced wholesale when present.
func (u ServiceUpdate) Apply(c ServiceConfig) ServiceConfig {
	out := c.Clone()
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.Provider != nil {
		out.Provider = *u.Provider
	}
	if u.Capability != nil {
		out.Capability = *u.Capability
	}
	if u.Endpoint != nil {
		out.Endpoint = *u.Endpoint
	}
	if u.Credential != nil {
		out.Credential = *u.Credential
	}
	if u.Model != nil {
		out.Model = *u.Model
	}
	if u.Parameters != nil {
		out.Parameters = maps.Clone(u.Parameters)
	}
	if u.Enabled != nil {
		out.Enabled = *u.Enabled
	}
	if u.Priority != nil {
		out.Priority = *u.Priority
	}
	if u.Timeout != nil {
		out.Timeout = *u.Timeout
	}
	if u.MaxRetries != nil {
		out.MaxRetries = *u.MaxRetries
	}
	if u.FallbackServiceID != nil {
		out.FallbackServiceID = *u.FallbackServiceID
	}
	return out
}

// MergeParameters overlays per-call parameters on service defaults.
func MergeParameters(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	maps.Copy(merged, defaults)
	maps.Copy(merged, overrides)
	return merged
}
