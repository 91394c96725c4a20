// Package display normalizes heterogeneous gate replies into the uniform
// payload the quoting UI renders: message, lettered options, warnings and a
// coarse status.
package display

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Option is one entry of a lettered multiple-choice list.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// ErrorDetail is the error payload inside a display object.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Display is the UI-ready summary attached to every assistant message.
type Display struct {
	Message    string       `json:"message"`
	Options    []Option     `json:"options"`
	Warnings   []string     `json:"warnings"`
	Error      *ErrorDetail `json:"error"`
	GateNumber int          `json:"gate_number"`
	GateName   string       `json:"gate_name"`
	Status     string       `json:"status"`
}

// NextGate describes the gate reached by auto-advancing, with the reply
// fetched for it.
type NextGate struct {
	GateNumber int
	GateName   string
	Reply      map[string]any // nil when the reply was plain text
	RawText    string
}

// AdvanceMeta carries the orchestrator's advancement outcome into display
// assembly. The zero value means no advancement happened this turn.
type AdvanceMeta struct {
	AdvancedTo   int // 0 = no advancement
	Next         *NextGate
	NextGateErr  string
	SkippedGates []int
}

// ParseReply decodes completion text as a JSON object. Anything that is not
// a JSON object (plain prose, arrays, bare strings) yields nil: the reply is
// then treated as an opaque message with no structured fields.
func ParseReply(text string) map[string]any {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil
	}
	return parsed
}

// optionMarker matches a letter marker like "A)", "B." or "C-" at the start
// of the text or after whitespace / comma / semicolon.
var optionMarker = regexp.MustCompile(`(?s)(?:^|[\s,;])\s*([A-Z])\s*[).\-]\s*`)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// ParseOptions extracts a lettered-choice list from question text, e.g.
// "A) R-Blade\nB) R-Breeze". The whole match is rejected unless the letters
// form a strictly consecutive run starting at A; a gap, repeat or non-A
// start means the text was not actually an option list.
func ParseOptions(text string) []Option {
	marks := optionMarker.FindAllStringSubmatchIndex(text, -1)
	if len(marks) == 0 {
		return nil
	}

	type entry struct {
		letter string
		label  string
	}
	var entries []entry
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		label := strings.TrimSpace(text[m[1]:end])
		label = strings.TrimSpace(strings.TrimRight(label, ","))
		if label == "" {
			continue
		}
		entries = append(entries, entry{letter: text[m[2]:m[3]], label: label})
	}

	for i, e := range entries {
		if e.letter != string(rune('A'+i)) {
			return nil
		}
	}

	options := make([]Option, 0, len(entries))
	for _, e := range entries {
		value := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(e.label), "_"), "_")
		options = append(options, Option{Key: e.letter, Label: e.label, Value: value})
	}
	return options
}

// ExtractMessage unifies the two question schemas: "question" (single
// string, gate 1 style) wins over "questions" (string array, gates 2+).
// Returns "" when neither is usable.
func ExtractMessage(reply map[string]any) string {
	if reply == nil {
		return ""
	}

	if q, ok := reply["question"].(string); ok && strings.TrimSpace(q) != "" {
		return strings.TrimSpace(q)
	}

	if qs, ok := reply["questions"].([]any); ok && len(qs) > 0 {
		var lines []string
		for _, item := range qs {
			if s, ok := item.(string); ok && s != "" {
				lines = append(lines, s)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}

	return ""
}

// ResolveStatus maps a reply's status field onto the display vocabulary.
// Only ok/complete/done pass through; everything else needs more input.
func ResolveStatus(reply map[string]any) string {
	if reply == nil {
		return "needs_info"
	}
	raw, _ := reply["status"].(string)
	switch s := strings.ToLower(raw); s {
	case "ok", "complete", "done":
		return s
	default:
		return "needs_info"
	}
}

// Build assembles the display object for a turn. When the turn auto-advanced
// and the next gate's question was fetched, the display reflects that next
// gate; the user never sees the completed gate's acknowledgment.
func Build(reply map[string]any, rawText string, meta AdvanceMeta, gateNumber int, gateName string) Display {
	var d Display

	switch {
	case meta.AdvancedTo != 0 && meta.Next != nil:
		d.GateNumber = meta.Next.GateNumber
		d.GateName = meta.Next.GateName
		if meta.Next.Reply != nil {
			d.Message = ExtractMessage(meta.Next.Reply)
		}
		if d.Message == "" {
			if meta.Next.RawText != "" {
				d.Message = meta.Next.RawText
			} else {
				d.Message = rawText
			}
		}
		d.Options = ParseOptions(d.Message)
		d.Status = ResolveStatus(meta.Next.Reply)

	case meta.AdvancedTo != 0 && meta.NextGateErr != "":
		d.GateNumber = meta.AdvancedTo
		d.GateName = "Gate " + strconv.Itoa(meta.AdvancedTo)
		d.Message = "Moving to next step..."
		d.Status = "error"

	default:
		d.GateNumber = gateNumber
		d.GateName = gateName
		d.Message = ExtractMessage(reply)
		if d.Message == "" {
			d.Message = rawText
		}
		d.Options = ParseOptions(d.Message)
		d.Status = ResolveStatus(reply)
	}

	// Warnings: last constructed reply wins. The chained next gate's list
	// overwrites the current gate's.
	d.Warnings = extractWarnings(reply, d.Warnings)
	if meta.Next != nil && meta.Next.Reply != nil {
		d.Warnings = extractWarnings(meta.Next.Reply, d.Warnings)
	}
	if d.Warnings == nil {
		d.Warnings = []string{}
	}
	if d.Options == nil {
		d.Options = []Option{}
	}

	return d
}

// BuildError produces the display shape for boundary-level failures.
func BuildError(code, message string, gateNumber int, gateName string) Display {
	return Display{
		Message:    message,
		Options:    []Option{},
		Warnings:   []string{},
		Error:      &ErrorDetail{Code: code, Message: message},
		GateNumber: gateNumber,
		GateName:   gateName,
		Status:     "error",
	}
}

func extractWarnings(reply map[string]any, current []string) []string {
	if reply == nil {
		return current
	}
	raw, ok := reply["warnings"].([]any)
	if !ok {
		return current
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
