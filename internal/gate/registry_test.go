package gate

import (
	"errors"
	"testing"

	"github.com/breslow-outdoor/quoteflow/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		PromptVersion: "5",
		GatePromptIDs: map[int]string{
			1:  "pmpt_gate1",
			2:  "pmpt_gate2",
			17: "pmpt_gate2b",
			3:  "pmpt_gate3",
		},
	}
}

func TestRegistryGate(t *testing.T) {
	reg := NewRegistry(testConfig())

	def, err := reg.Gate(1)
	if err != nil {
		t.Fatalf("Gate(1): %v", err)
	}
	if def.Name != "Product Selection" {
		t.Errorf("expected Product Selection, got %q", def.Name)
	}
	if def.Status != StatusActive {
		t.Errorf("expected gate 1 active, got %s", def.Status)
	}
	if def.PromptID != "pmpt_gate1" {
		t.Errorf("expected configured prompt id, got %q", def.PromptID)
	}
	if def.PromptVersion != "5" {
		t.Errorf("expected pinned version on gate 1, got %q", def.PromptVersion)
	}

	_, err = reg.Gate(99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for gate 99, got %v", err)
	}
}

func TestRegistryPlaceholders(t *testing.T) {
	reg := NewRegistry(testConfig())

	for _, n := range []int{4, 5, 10, 16} {
		def, err := reg.Gate(n)
		if err != nil {
			t.Fatalf("Gate(%d): %v", n, err)
		}
		if def.Status != StatusPlaceholder {
			t.Errorf("gate %d: expected placeholder, got %s", n, def.Status)
		}
		if def.PromptID != "" {
			t.Errorf("gate %d: placeholder must not carry a prompt id, got %q", n, def.PromptID)
		}
	}
}

func TestActiveGates(t *testing.T) {
	reg := NewRegistry(testConfig())

	active := reg.ActiveGates()
	if len(active) != 4 {
		t.Fatalf("expected 4 active gates, got %d", len(active))
	}
	want := []int{1, 2, 3, 17}
	for i, def := range active {
		if def.Number != want[i] {
			t.Errorf("active[%d]: expected gate %d, got %d", i, want[i], def.Number)
		}
		if def.PromptID == "" {
			t.Errorf("active gate %d has no prompt id", def.Number)
		}
	}
}

func TestDefaultSequenceIsCopied(t *testing.T) {
	reg := NewRegistry(testConfig())

	seq := reg.DefaultSequence()
	if seq[0] != 1 || seq[1] != 2 || seq[2] != 17 || seq[3] != 3 {
		t.Errorf("unexpected sequence head: %v", seq[:4])
	}

	seq[0] = 999
	if reg.DefaultSequence()[0] != 1 {
		t.Error("mutating the returned sequence leaked into the registry")
	}
}
