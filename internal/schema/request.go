// Package schema defines the wire types for a CDP-Skill invocation: the
// request JSON an agent submits and the response JSON the engine emits.
package schema

import "encoding/json"

// Request is the top-level JSON object accepted on argv[1] or stdin.
type Request struct {
	Tab     string          `json:"tab,omitempty"`
	Timeout int64           `json:"timeout,omitempty"`
	Steps   []Step          `json:"steps"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// Step is a single element of Request.Steps: exactly one action key plus the
// optional lifecycle-hook and modifier keys. Its custom UnmarshalJSON (below)
// keeps the raw shape; the action key is interpreted in internal/runner,
// because the action set is closed and known only to the runner package.
type Step struct {
	// Raw holds the full decoded JSON object for this step, handed to
	// internal/runner for action dispatch and validation.
	Raw map[string]json.RawMessage

	Optional    bool   `json:"optional,omitempty"`
	ReadyWhen   string `json:"readyWhen,omitempty"`
	SettledWhen string `json:"settledWhen,omitempty"`
	Observe     string `json:"observe,omitempty"`
	Timeout     int64  `json:"timeout,omitempty"`
}

// modifierKeys are the recognized non-action keys on a step object. Any
// other key not in this set and not a known action name is itself the
// action key (or part of a multi-action violation).
var modifierKeys = map[string]bool{
	"optional":    true,
	"readyWhen":   true,
	"settledWhen": true,
	"observe":     true,
	"timeout":     true,
}

// UnmarshalJSON decodes a step into its raw key map plus the known modifier
// fields, leaving action-key interpretation to internal/runner.
func (s *Step) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Raw = raw

	if v, ok := raw["optional"]; ok {
		_ = json.Unmarshal(v, &s.Optional)
	}
	if v, ok := raw["readyWhen"]; ok {
		_ = json.Unmarshal(v, &s.ReadyWhen)
	}
	if v, ok := raw["settledWhen"]; ok {
		_ = json.Unmarshal(v, &s.SettledWhen)
	}
	if v, ok := raw["observe"]; ok {
		_ = json.Unmarshal(v, &s.Observe)
	}
	if v, ok := raw["timeout"]; ok {
		_ = json.Unmarshal(v, &s.Timeout)
	}
	return nil
}

// ActionKeys returns the step's keys that are not recognized modifiers —
// candidates for the single required action key.
func (s *Step) ActionKeys() []string {
	keys := make([]string, 0, 1)
	for k := range s.Raw {
		if !modifierKeys[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
