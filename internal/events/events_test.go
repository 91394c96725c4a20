package events

import "testing"

// Event publishing is optional wiring: a nil publisher must be safe to call
// everywhere the service emits notifications.
func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher

	p.ConversationCreated("conv_abc")
	p.ConversationCancelled("conv_abc")
	p.GateAdvanced("conv_abc", 1, 2, []int{2, 17})
	p.QuoteCompleted("conv_abc", 3)
	p.Publish(SubjectGateAdvanced, map[string]any{"x": 1})
	p.Close()
}
