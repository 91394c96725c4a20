// Package gate defines the scripted steps of the quoting wizard and the
// per-conversation session state that tracks progress through them.
package gate

import "errors"

// ErrNotFound is returned when a gate number is not in the registry.
var ErrNotFound = errors.New("gate not found")

// Kind distinguishes gates that apply to every product from gates whose
// behaviour varies by the selected product.
type Kind string

const (
	KindUniversal        Kind = "universal"
	KindConfigRestricted Kind = "config"
)

// Status marks whether a gate has a prompt wired up and can be served.
type Status string

const (
	StatusActive      Status = "active"      // has a prompt ID, ready to use
	StatusPlaceholder Status = "placeholder" // defined but no prompt yet
)

// VarBinding maps one prompt variable name to the source key it is
// resolved from (a configuration field or a ProductConfig entry).
type VarBinding struct {
	Name      string
	SourceKey string
}

// Definition is an immutable gate entry owned by the registry.
// A placeholder gate has no PromptID and is never sent to the completion
// service.
type Definition struct {
	Number        int
	Name          string
	Kind          Kind
	PromptID      string
	PromptVersion string
	Variables     []VarBinding
	Status        Status
}
