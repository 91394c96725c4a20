// Package orchestrator decides which gate governs each turn: it loads and
// saves session state, binds prompt variables, judges whether a reply
// completes its gate, and chains through gates that need no user input.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/breslow-outdoor/quoteflow/internal/config"
	"github.com/breslow-outdoor/quoteflow/internal/display"
	"github.com/breslow-outdoor/quoteflow/internal/gate"
	"github.com/breslow-outdoor/quoteflow/internal/openai"
)

// maxChain bounds how many gates one turn may silently skip through. Hitting
// the bound stops the chain with no signal; whether that should surface as a
// user-visible warning is still undecided.
const maxChain = 10

// controlKeys are reply fields consumed by the orchestrator itself and never
// merged into ProductConfig.
var controlKeys = map[string]bool{
	"status":    true,
	"question":  true,
	"questions": true,
	"warnings":  true,
}

// SessionStore is the persistence contract for the opaque session blob.
type SessionStore interface {
	GetSessionState(ctx context.Context, conversationID string) ([]byte, error)
	SetSessionState(ctx context.Context, conversationID string, blob []byte) error
}

// CompletionClient is the external completion-service contract used when
// chaining through auto-completing gates.
type CompletionClient interface {
	Complete(ctx context.Context, promptID, version string, variables map[string]string, messages []openai.Message) (string, error)
}

type Orchestrator struct {
	cfg      config.Config
	registry *gate.Registry
	sessions SessionStore
	llm      CompletionClient
	logger   *slog.Logger
}

func New(cfg config.Config, reg *gate.Registry, sessions SessionStore, llm CompletionClient, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		sessions: sessions,
		llm:      llm,
		logger:   logger,
	}
}

// Registry exposes the injected gate table.
func (o *Orchestrator) Registry() *gate.Registry {
	return o.registry
}

// LoadSession fetches and deserializes the session blob. A conversation
// without stored state gets a fresh default session.
func (o *Orchestrator) LoadSession(ctx context.Context, conversationID string) (*gate.SessionState, error) {
	blob, err := o.sessions.GetSessionState(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", conversationID, err)
	}
	state, err := gate.SessionStateFromJSON(blob, o.registry)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", conversationID, err)
	}
	return state, nil
}

// SaveSession serializes and overwrites the stored blob. Last writer wins.
func (o *Orchestrator) SaveSession(ctx context.Context, conversationID string, state *gate.SessionState) error {
	blob, err := state.ToJSON()
	if err != nil {
		return fmt.Errorf("encode session %s: %w", conversationID, err)
	}
	if err := o.sessions.SetSessionState(ctx, conversationID, blob); err != nil {
		return fmt.Errorf("save session %s: %w", conversationID, err)
	}
	return nil
}

// ResolveGate loads the session and returns the gate governing this turn.
// A placeholder current gate is skipped once and the skip persisted;
// placeholders are never surfaced to the user or sent to the provider.
func (o *Orchestrator) ResolveGate(ctx context.Context, conversationID string) (gate.Definition, *gate.SessionState, error) {
	state, err := o.LoadSession(ctx, conversationID)
	if err != nil {
		return gate.Definition{}, nil, err
	}

	def, err := o.registry.Gate(state.CurrentGate)
	if err != nil {
		return gate.Definition{}, nil, fmt.Errorf("gate %d: %w", state.CurrentGate, err)
	}

	if def.Status == gate.StatusPlaceholder {
		if nxt, ok := state.Advance(o.registry); ok {
			def, err = o.registry.Gate(nxt)
			if err != nil {
				return gate.Definition{}, nil, fmt.Errorf("gate %d: %w", nxt, err)
			}
			if err := o.SaveSession(ctx, conversationID, state); err != nil {
				return gate.Definition{}, nil, err
			}
		}
	}

	return def, state, nil
}

// ResolveVariables binds every variable the gate declares. Static
// configuration wins over accumulated session data; a key known to neither
// binds the empty string, so the provider always receives a complete set.
func (o *Orchestrator) ResolveVariables(def gate.Definition, state *gate.SessionState) map[string]string {
	vars := make(map[string]string, len(def.Variables))
	for _, b := range def.Variables {
		if v, ok := o.cfg.Lookup(b.SourceKey); ok {
			vars[b.Name] = v
			continue
		}
		if v, ok := state.ProductConfig[b.SourceKey]; ok {
			vars[b.Name] = stringify(v)
			continue
		}
		vars[b.Name] = ""
	}
	return vars
}

// ShouldAdvance reports whether a reply completes its gate: an explicit
// terminal status, or (gate 1) a chosen product with nothing left to ask.
func (o *Orchestrator) ShouldAdvance(parsed map[string]any) bool {
	if parsed == nil {
		return false
	}
	status, _ := parsed["status"].(string)
	switch strings.ToLower(status) {
	case "ok", "complete", "done":
		return true
	}
	if hasValue(parsed, "product_id") && !hasValue(parsed, "question") {
		return true
	}
	return false
}

// CollectData merges a reply's domain fields into ProductConfig (later
// writes overwrite earlier ones), hoists nested result_single fields,
// records the full reply under gate_<n>_response, and rebuilds the derived
// bay context.
func (o *Orchestrator) CollectData(state *gate.SessionState, parsed map[string]any) {
	if parsed == nil {
		return
	}

	for key, value := range parsed {
		if controlKeys[key] || value == nil {
			continue
		}
		state.ProductConfig[key] = value
	}

	if nested, ok := parsed["result_single"].(map[string]any); ok {
		for key, value := range nested {
			if controlKeys[key] || value == nil {
				continue
			}
			state.ProductConfig[key] = value
		}
	}

	state.ProductConfig[fmt.Sprintf("gate_%d_response", state.CurrentGate)] = parsed

	o.rebuildBayContext(state)
}

// AdvanceGate optionally collects reply data, moves the cursor to the next
// active gate and persists. The bool is false when the sequence is
// exhausted.
func (o *Orchestrator) AdvanceGate(ctx context.Context, conversationID string, state *gate.SessionState, parsed map[string]any) (int, bool, error) {
	if parsed != nil {
		o.CollectData(state, parsed)
	}
	nxt, ok := state.Advance(o.registry)
	if err := o.SaveSession(ctx, conversationID, state); err != nil {
		return 0, false, err
	}
	return nxt, ok, nil
}

// ChainAdvance fetches the new current gate's reply and keeps advancing
// while gates auto-complete without asking anything, up to maxChain
// completion calls. Errors mid-chain are swallowed into NextGateErr: the
// turn still succeeds with whatever was already advanced.
func (o *Orchestrator) ChainAdvance(ctx context.Context, conversationID string, state *gate.SessionState, history []openai.Message, advancedTo int) display.AdvanceMeta {
	meta := display.AdvanceMeta{AdvancedTo: advancedTo}

	for i := 0; i < maxChain; i++ {
		def, err := o.registry.Gate(state.CurrentGate)
		if err != nil {
			meta.NextGateErr = err.Error()
			return meta
		}

		vars := o.ResolveVariables(def, state)
		raw, err := o.llm.Complete(ctx, def.PromptID, def.PromptVersion, vars, history)
		if err != nil {
			o.logger.Warn("chain-advance fetch failed",
				"conversation_id", conversationID,
				"gate", def.Number,
				"error", err,
			)
			meta.NextGateErr = err.Error()
			return meta
		}

		parsed := display.ParseReply(raw)
		if !o.ShouldAdvance(parsed) {
			// First gate that actually needs the user.
			meta.Next = &display.NextGate{
				GateNumber: def.Number,
				GateName:   def.Name,
				Reply:      parsed,
				RawText:    raw,
			}
			return meta
		}

		o.CollectData(state, parsed)
		nxt, ok := state.Advance(o.registry)
		if err := o.SaveSession(ctx, conversationID, state); err != nil {
			meta.NextGateErr = err.Error()
			return meta
		}
		if !ok {
			// Sequence exhausted: the terminal gate's own reply is shown.
			meta.Next = &display.NextGate{
				GateNumber: def.Number,
				GateName:   def.Name,
				Reply:      parsed,
				RawText:    raw,
			}
			return meta
		}

		meta.SkippedGates = append(meta.SkippedGates, def.Number)
		meta.AdvancedTo = nxt
		o.logger.Info("gate auto-completed, chaining",
			"conversation_id", conversationID,
			"skipped_gate", def.Number,
			"now_at", nxt,
		)
	}

	// Bound hit: stop with no signal.
	return meta
}

// rebuildBayContext reassembles the pre-joined pricing context later gates
// consume, from whichever width/length fields have been established so far.
// Per dimension the precedence is confirmed, then assumed, then the
// keep-previous option.
func (o *Orchestrator) rebuildBayContext(state *gate.SessionState) {
	width, widthSource := resolveDimension(state.ProductConfig, "width_ft")
	length, lengthSource := resolveDimension(state.ProductConfig, "length_ft")
	if width == nil && length == nil {
		return
	}

	bay := map[string]any{}
	if pid, ok := state.ProductConfig["product_id"]; ok {
		bay["product_id"] = pid
	}
	if width != nil {
		bay["width_ft"] = width
		bay["width_source"] = widthSource
	}
	if length != nil {
		bay["length_ft"] = length
		bay["length_source"] = lengthSource
	}

	var rules map[string]any
	if err := json.Unmarshal([]byte(o.cfg.DimensionContext), &rules); err == nil {
		if dr, ok := rules["DIMENSION_RULES"]; ok {
			bay["dimension_rules"] = dr
		}
	}

	blob, err := json.Marshal(bay)
	if err != nil {
		return
	}
	state.ProductConfig["bay_context"] = string(blob)
}

// resolveDimension walks the confirmed → assumed → keep precedence chain for
// one dimension key. The bare key counts as confirmed.
func resolveDimension(pc map[string]any, key string) (any, string) {
	candidates := []struct {
		field  string
		source string
	}{
		{key, "confirmed"},
		{"confirmed_" + key, "confirmed"},
		{"assumed_" + key, "assumed"},
		{"keep_" + key, "keep"},
	}
	for _, c := range candidates {
		if v, ok := pc[c.field]; ok && v != nil {
			return v, c.source
		}
	}
	return nil, ""
}

func hasValue(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; keep integers clean.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		blob, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(blob)
	}
}
