package page

import "encoding/json"

// consoleAPICalledEvent mirrors Runtime.consoleAPICalled's payload shape we
// actually consume: type ("log","error","warning",...) and the first
// argument's string/description, which is the common case for agent-facing
// page scripts logging plain messages.
type consoleAPICalledEvent struct {
	Type string `json:"type"`
	Args []struct {
		Type        string `json:"type"`
		Value       any    `json:"value"`
		Description string `json:"description"`
	} `json:"args"`
}

func (p *Page) onConsoleAPI(raw json.RawMessage) {
	var ev consoleAPICalledEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	level := normalizeConsoleLevel(ev.Type)
	p.pushConsole(level, firstArgText(ev.Args))
}

func normalizeConsoleLevel(t string) string {
	switch t {
	case "error", "assert":
		return "error"
	case "warning":
		return "warning"
	default:
		return "log"
	}
}

func firstArgText(args []struct {
	Type        string `json:"type"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}) string {
	if len(args) == 0 {
		return ""
	}
	a := args[0]
	if a.Description != "" {
		return a.Description
	}
	if s, ok := a.Value.(string); ok {
		return s
	}
	b, _ := json.Marshal(a.Value)
	return string(b)
}

// logEntryAddedEvent mirrors Log.entryAdded's `entry` wrapper.
type logEntryAddedEvent struct {
	Entry struct {
		Level string `json:"level"`
		Text  string `json:"text"`
	} `json:"entry"`
}

func (p *Page) onLogEntry(raw json.RawMessage) {
	var ev logEntryAddedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	p.pushConsole(normalizeConsoleLevel(ev.Entry.Level), ev.Entry.Text)
}
