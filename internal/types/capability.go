package types

// Capability is the kind of AI operation a service performs.
type Capability string

const (
	CapChat       Capability = "chat"
	CapCompletion Capability = "completion"
	CapEmbedding  Capability = "embedding"
	CapImage      Capability = "image"
	CapAudio      Capability = "audio"
	CapMultimodal Capability = "multimodal"
)

// textual reports whether the capability produces text from a prompt.
func (c Capability) textual() bool {
	switch c {
	case CapChat, CapCompletion, CapMultimodal:
		return true
	default:
		return false
	}
}

// CompatibleWith returns true if a service of capability c can stand in for
// a service of capability other. Text-generating capabilities are
// interchangeable; everything else must match exactly.
func (c Capability) CompatibleWith(other Capability) bool {
	if c == other {
		return true
	}
	return c.textual() && other.textual()
}

func ParseCapability(s string) (Capability, bool) {
	switch Capability(s) {
	case CapChat, CapCompletion, CapEmbedding, CapImage, CapAudio, CapMultimodal:
		return Capability(s), true
	default:
		return "", false
	}
}

// ProviderKind tags the vendor family that implements a service.
type ProviderKind string

const (
	ProviderOpenAI     ProviderKind = "openai"
	ProviderAnthropic  ProviderKind = "anthropic"
	ProviderGoogle     ProviderKind = "google"
	ProviderAzure      ProviderKind = "azure"
	ProviderAWS        ProviderKind = "aws"
	ProviderSelfHosted ProviderKind = "self-hosted"
	ProviderCustom     ProviderKind = "custom"
)

// RequiresCredential reports whether services of kind k cannot run without a
// credential. Self-hosted and custom endpoints may be open.
func (k ProviderKind) RequiresCredential() bool {
	switch k {
	case ProviderSelfHosted, ProviderCustom:
		return false
	default:
		return true
	}
}

func ParseProviderKind(s string) (ProviderKind, bool) {
	switch ProviderKind(s) {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderAzure,
		ProviderAWS, ProviderSelfHosted, ProviderCustom:
		return ProviderKind(s), true
	default:
		return "", false
	}
}
