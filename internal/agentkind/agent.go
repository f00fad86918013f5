// Package agentkind holds the provider-agnostic agent vocabulary: which
// provider families exist, which models belong to them, their wire
// transport, and the single permission mode currently supported.
package agentkind

import "fmt"

// Kind identifies an external agent provider family.
type Kind string

const (
	Gemini Kind = "gemini"
	Claude Kind = "claude"
	Codex  Kind = "codex"
)

// Transport describes how a Kind is driven: a fresh CLI subprocess per
// turn, or a persistent app-server speaking JSON-RPC over stdio.
type Transport string

const (
	TransportCLI       Transport = "cli"
	TransportAppServer Transport = "app_server"
)

// TransportFor returns the wire transport used by a provider kind.
//
// Claude is driven as a stateless CLI subprocess per turn. Gemini and Codex
// are driven through a persistent app-server runtime so multi-turn context
// survives across replies without a full transcript replay on every turn.
func TransportFor(kind Kind) Transport {
	switch kind {
	case Claude:
		return TransportCLI
	case Gemini, Codex:
		return TransportAppServer
	default:
		return TransportCLI
	}
}

// ParseKind validates a persisted agent kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case Gemini, Claude, Codex:
		return Kind(raw), nil
	default:
		return "", fmt.Errorf("unknown agent kind: %s", raw)
	}
}

// Model is a provider-scoped model identifier, e.g. "claude-sonnet-4-6".
// Models are not a closed Go enum: new models are added by providers
// faster than this codebase should need rebuilding, so the identifier is
// validated against a known-models table but stored as plain text.
type Model string

// modelKinds maps every recognized model identifier to its owning
// provider family, mirroring the upstream AgentModel::kind mapping.
var modelKinds = map[Model]Kind{
	"gemini-3-flash-preview":    Gemini,
	"gemini-3.1-pro-preview":    Gemini,
	"gpt-5.3-codex-spark":       Codex,
	"gpt-5.3-codex":             Codex,
	"gpt-5.2-codex":             Codex,
	"claude-opus-4-6":           Claude,
	"claude-sonnet-4-6":         Claude,
	"claude-haiku-4-5-20251001": Claude,
}

// defaultModels holds the model used for a provider family when the caller
// (an onboarding flow, a quick "start a Gemini session" command) doesn't
// pin a specific identifier.
var defaultModels = map[Kind]Model{
	Claude: "claude-sonnet-4-6",
	Gemini: "gemini-3.1-pro-preview",
	Codex:  "gpt-5.3-codex",
}

// DefaultModelFor returns the model used for kind absent an explicit choice.
func DefaultModelFor(kind Kind) Model {
	return defaultModels[kind]
}

// KindOf returns the provider family that owns a model identifier.
//
// # Errors
// Returns an error for an unrecognized model identifier.
func KindOf(model Model) (Kind, error) {
	kind, ok := modelKinds[model]
	if !ok {
		return "", fmt.Errorf("unknown model: %s", model)
	}

	return kind, nil
}

// PermissionMode is an extensible validated tag for agent execution
// permissions. Only "auto_edit" is recognized today; the type exists so a
// future mode is a one-line addition to recognizedPermissionModes rather
// than a new Go enum variant threaded through every call site.
type PermissionMode string

const AutoEdit PermissionMode = "auto_edit"

var recognizedPermissionModes = map[PermissionMode]string{
	AutoEdit: "Auto Edit",
}

// ParsePermissionMode validates a persisted permission mode string.
func ParsePermissionMode(raw string) (PermissionMode, error) {
	mode := PermissionMode(raw)
	if _, ok := recognizedPermissionModes[mode]; !ok {
		return "", fmt.Errorf("unknown permission mode: %s", raw)
	}

	return mode, nil
}

// DisplayLabel returns the user-facing label for a permission mode.
func (m PermissionMode) DisplayLabel() string {
	if label, ok := recognizedPermissionModes[m]; ok {
		return label
	}

	return string(m)
}
