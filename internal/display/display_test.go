package display

import (
	"reflect"
	"testing"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Option
	}{
		{
			name: "newline separated",
			text: "A) Red\nB) Blue\nC) Green",
			want: []Option{
				{Key: "A", Label: "Red", Value: "red"},
				{Key: "B", Label: "Blue", Value: "blue"},
				{Key: "C", Label: "Green", Value: "green"},
			},
		},
		{
			name: "dot and dash markers",
			text: "A. R-Blade B- R-Breeze",
			want: []Option{
				{Key: "A", Label: "R-Blade", Value: "r_blade"},
				{Key: "B", Label: "R-Breeze", Value: "r_breeze"},
			},
		},
		{
			name: "comma separated",
			text: "A) Yes, B) No",
			want: []Option{
				{Key: "A", Label: "Yes", Value: "yes"},
				{Key: "B", Label: "No", Value: "no"},
			},
		},
		{
			name: "non-consecutive letters rejected",
			text: "A) Red\nC) Green",
			want: nil,
		},
		{
			name: "non-A start rejected",
			text: "B) Red\nC) Green",
			want: nil,
		},
		{
			name: "repeated letter rejected",
			text: "A) Red\nA) Blue",
			want: nil,
		},
		{
			name: "no options",
			text: "What width do you need?",
			want: nil,
		},
		{
			name: "label with punctuation collapses in value",
			text: "A) 12 x 18 ft.\nB) Custom size",
			want: []Option{
				{Key: "A", Label: "12 x 18 ft.", Value: "12_x_18_ft"},
				{Key: "B", Label: "Custom size", Value: "custom_size"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOptions(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOptions(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name  string
		reply map[string]any
		want  string
	}{
		{"nil reply", nil, ""},
		{"single question", map[string]any{"question": " Which product? "}, "Which product?"},
		{
			"question wins over questions",
			map[string]any{"question": "Which?", "questions": []any{"a", "b"}},
			"Which?",
		},
		{
			"questions joined",
			map[string]any{"questions": []any{"What width?", "What length?"}},
			"What width?\nWhat length?",
		},
		{"empty question string falls through", map[string]any{"question": "  "}, ""},
		{"questions with empties skipped", map[string]any{"questions": []any{"", "Only this"}}, "Only this"},
		{"neither schema", map[string]any{"status": "ok"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractMessage(tt.reply); got != tt.want {
				t.Errorf("ExtractMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name  string
		reply map[string]any
		want  string
	}{
		{"nil reply", nil, "needs_info"},
		{"ok", map[string]any{"status": "ok"}, "ok"},
		{"uppercase complete", map[string]any{"status": "COMPLETE"}, "complete"},
		{"done", map[string]any{"status": "done"}, "done"},
		{"anything else", map[string]any{"status": "thinking"}, "needs_info"},
		{"absent status", map[string]any{"question": "?"}, "needs_info"},
		{"non-string status", map[string]any{"status": 3}, "needs_info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveStatus(tt.reply); got != tt.want {
				t.Errorf("ResolveStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildNormalTurn(t *testing.T) {
	reply := map[string]any{
		"status":   "needs_info",
		"question": "Pick one:\nA) Red\nB) Blue",
		"warnings": []any{"width assumed"},
	}

	d := Build(reply, "raw text", AdvanceMeta{}, 2, "Dimensions & State")

	if d.GateNumber != 2 || d.GateName != "Dimensions & State" {
		t.Errorf("display reflects wrong gate: %d %q", d.GateNumber, d.GateName)
	}
	if d.Message != "Pick one:\nA) Red\nB) Blue" {
		t.Errorf("unexpected message %q", d.Message)
	}
	if len(d.Options) != 2 {
		t.Errorf("expected 2 options, got %v", d.Options)
	}
	if d.Status != "needs_info" {
		t.Errorf("expected needs_info, got %q", d.Status)
	}
	if len(d.Warnings) != 1 || d.Warnings[0] != "width assumed" {
		t.Errorf("unexpected warnings %v", d.Warnings)
	}
	if d.Error != nil {
		t.Errorf("unexpected error %v", d.Error)
	}
}

func TestBuildFallsBackToRawText(t *testing.T) {
	d := Build(nil, "plain text answer", AdvanceMeta{}, 1, "Product Selection")

	if d.Message != "plain text answer" {
		t.Errorf("expected raw text fallback, got %q", d.Message)
	}
	if d.Status != "needs_info" {
		t.Errorf("expected needs_info for opaque reply, got %q", d.Status)
	}
}

func TestBuildAdvancedWithNextGate(t *testing.T) {
	meta := AdvanceMeta{
		AdvancedTo: 2,
		Next: &NextGate{
			GateNumber: 2,
			GateName:   "Dimensions & State",
			Reply: map[string]any{
				"status":    "needs_info",
				"questions": []any{"What width?", "What length?"},
				"warnings":  []any{"from next gate"},
			},
		},
	}
	current := map[string]any{
		"status":     "ok",
		"product_id": "r_blade",
		"warnings":   []any{"from current gate"},
	}

	d := Build(current, `{"status":"ok"}`, meta, 1, "Product Selection")

	if d.GateNumber != 2 || d.GateName != "Dimensions & State" {
		t.Errorf("display should reflect the next gate, got %d %q", d.GateNumber, d.GateName)
	}
	if d.Message != "What width?\nWhat length?" {
		t.Errorf("unexpected message %q", d.Message)
	}
	if d.Status != "needs_info" {
		t.Errorf("expected next gate status, got %q", d.Status)
	}
	// Last-found warnings win.
	if len(d.Warnings) != 1 || d.Warnings[0] != "from next gate" {
		t.Errorf("expected next gate warnings to win, got %v", d.Warnings)
	}
}

func TestBuildAdvancedWithFetchError(t *testing.T) {
	meta := AdvanceMeta{
		AdvancedTo:  2,
		NextGateErr: "completion call failed",
	}

	d := Build(map[string]any{"status": "ok"}, "raw", meta, 1, "Product Selection")

	if d.GateNumber != 2 {
		t.Errorf("expected advanced-to gate number, got %d", d.GateNumber)
	}
	if d.GateName != "Gate 2" {
		t.Errorf("expected generic gate name, got %q", d.GateName)
	}
	if d.Message != "Moving to next step..." {
		t.Errorf("unexpected message %q", d.Message)
	}
	if d.Status != "error" {
		t.Errorf("expected error status, got %q", d.Status)
	}
}

func TestBuildError(t *testing.T) {
	d := BuildError("completion_error", "provider unavailable", 3, "Bay Logic & Pricing")

	if d.Error == nil || d.Error.Code != "completion_error" {
		t.Fatalf("expected error detail, got %v", d.Error)
	}
	if d.Status != "error" {
		t.Errorf("expected error status, got %q", d.Status)
	}
	if len(d.Options) != 0 || len(d.Warnings) != 0 {
		t.Errorf("error display must have empty options/warnings")
	}
}
