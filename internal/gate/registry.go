package gate

import (
	"sort"

	"github.com/breslow-outdoor/quoteflow/internal/config"
)

// Registry is the static catalog of all gate definitions. It is built once
// at startup from configuration and injected into the orchestrator; the
// table is never mutated afterwards.
type Registry struct {
	gates    map[int]Definition
	sequence []int
}

// defaultSequence is the default traversal order. Gate 17 (Bay Sizing, the
// "2b" prompt) runs between Dimensions and Bay Logic, so the order is not
// numeric.
var defaultSequence = []int{1, 2, 17, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

type gateSpec struct {
	number    int
	name      string
	kind      Kind
	variables []VarBinding
}

// All 17 gate definitions. Prompt IDs come from configuration; a gate whose
// number has no configured prompt ID stays a placeholder.
var gateSpecs = []gateSpec{
	{1, "Product Selection", KindUniversal, []VarBinding{{Name: "product_options", SourceKey: "product_options"}}},
	{2, "Dimensions & State", KindUniversal, []VarBinding{{Name: "dimension_context", SourceKey: "dimension_context"}}},
	{17, "Bay Sizing", KindConfigRestricted, []VarBinding{{Name: "bay_context", SourceKey: "bay_context"}}},
	{3, "Bay Logic & Pricing", KindUniversal, []VarBinding{{Name: "bay_context", SourceKey: "bay_context"}}},
	{4, "Structure & Posts", KindUniversal, nil},
	{5, "Color / Finish", KindConfigRestricted, nil},
	{6, "Roof Options", KindUniversal, nil},
	{7, "Electrical & Lighting", KindUniversal, nil},
	{8, "Fan & Heating", KindUniversal, nil},
	{9, "Screens & Enclosures", KindUniversal, nil},
	{10, "Permits & Engineering", KindUniversal, nil},
	{11, "Installation Options", KindUniversal, nil},
	{12, "Warranty & Protection", KindUniversal, nil},
	{13, "Discounts & Promotions", KindUniversal, nil},
	{14, "Summary & Review", KindUniversal, nil},
	{15, "Customer Info & Delivery", KindUniversal, nil},
	{16, "Final Quote & Checkout", KindUniversal, nil},
}

// NewRegistry builds the gate table. Only gate 1 carries a prompt version:
// the Product Selection prompt is pinned, the rest always use their latest
// published revision.
func NewRegistry(cfg config.Config) *Registry {
	gates := make(map[int]Definition, len(gateSpecs))
	for _, spec := range gateSpecs {
		def := Definition{
			Number:    spec.number,
			Name:      spec.name,
			Kind:      spec.kind,
			Variables: spec.variables,
			Status:    StatusPlaceholder,
		}
		if id, ok := cfg.GatePromptIDs[spec.number]; ok && id != "" {
			def.PromptID = id
			def.Status = StatusActive
			if spec.number == 1 {
				def.PromptVersion = cfg.PromptVersion
			}
		}
		gates[def.Number] = def
	}

	seq := make([]int, len(defaultSequence))
	copy(seq, defaultSequence)

	return &Registry{gates: gates, sequence: seq}
}

// Gate returns the definition for a gate number.
func (r *Registry) Gate(number int) (Definition, error) {
	def, ok := r.gates[number]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return def, nil
}

// ActiveGates returns the gates that have prompts wired up, in number order.
func (r *Registry) ActiveGates() []Definition {
	var out []Definition
	for _, def := range r.gates {
		if def.Status == StatusActive {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// DefaultSequence returns a copy of the default traversal order.
func (r *Registry) DefaultSequence() []int {
	seq := make([]int, len(r.sequence))
	copy(seq, r.sequence)
	return seq
}
