package gate

import "encoding/json"

// SessionState is the per-conversation progress record, serialized into the
// conversation's config_json column. It is mutated only by the orchestrator
// and persisted after every mutation. Concurrent turns on one conversation
// race on the blob (last save wins); callers that need stronger guarantees
// must serialize per conversation externally.
type SessionState struct {
	CurrentGate     int                `json:"current_gate"`
	GateSequence    []int              `json:"gate_sequence"`
	ProductConfig   map[string]any     `json:"product_config"`
	LineItems       []map[string]any   `json:"line_items"`
	SubtotalsByGate map[string]float64 `json:"subtotals_by_gate"`
	Flags           []string           `json:"flags"`
}

// NewSessionState returns a fresh state positioned at the first gate of the
// registry's default sequence.
func NewSessionState(reg *Registry) *SessionState {
	seq := reg.DefaultSequence()
	current := 1
	if len(seq) > 0 {
		current = seq[0]
	}
	return &SessionState{
		CurrentGate:     current,
		GateSequence:    seq,
		ProductConfig:   make(map[string]any),
		LineItems:       []map[string]any{},
		SubtotalsByGate: make(map[string]float64),
		Flags:           []string{},
	}
}

// SessionStateFromJSON deserializes a stored blob. A missing or empty blob
// yields a fresh default state.
func SessionStateFromJSON(data []byte, reg *Registry) (*SessionState, error) {
	if len(data) == 0 || string(data) == "{}" || string(data) == "null" {
		return NewSessionState(reg), nil
	}
	s := NewSessionState(reg)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.ProductConfig == nil {
		s.ProductConfig = make(map[string]any)
	}
	if s.SubtotalsByGate == nil {
		s.SubtotalsByGate = make(map[string]float64)
	}
	if len(s.GateSequence) == 0 {
		s.GateSequence = reg.DefaultSequence()
	}
	return s, nil
}

// ToJSON serializes the state for storage.
func (s *SessionState) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// NextGate returns the next active gate number strictly after CurrentGate in
// the sequence, skipping placeholders and numbers unknown to the registry.
// The second return is false when CurrentGate is not in the sequence or no
// active gate remains.
func (s *SessionState) NextGate(reg *Registry) (int, bool) {
	idx := -1
	for i, n := range s.GateSequence {
		if n == s.CurrentGate {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, false
	}
	for _, candidate := range s.GateSequence[idx+1:] {
		def, err := reg.Gate(candidate)
		if err != nil {
			continue
		}
		if def.Status == StatusActive {
			return candidate, true
		}
	}
	return 0, false
}

// Advance moves CurrentGate to the next active gate. Not idempotent: each
// call moves the cursor further.
func (s *SessionState) Advance(reg *Registry) (int, bool) {
	nxt, ok := s.NextGate(reg)
	if ok {
		s.CurrentGate = nxt
	}
	return nxt, ok
}
