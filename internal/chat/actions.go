package chat

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/aniverse/backend/internal/model"
)

// ActionKind is the fixed vocabulary of list actions the assistant may
// request. Anything else in the model's output is treated as plain
// conversation.
type ActionKind string

const (
	ActionAddToList ActionKind = "add_to_list"
	ActionRate      ActionKind = "rate"
	ActionRemove    ActionKind = "remove"
	ActionSearch    ActionKind = "search"
)

// Action is one decoded assistant action with its typed payload.
type Action struct {
	Kind   ActionKind      `json:"action"`
	Title  string          `json:"title,omitempty"`
	ID     int64           `json:"id,omitempty"`
	Media  model.MediaType `json:"media,omitempty"`
	Status string          `json:"status,omitempty"`
	Rating float64         `json:"rating,omitempty"`
	Query  string          `json:"query,omitempty"`
}

const actionsFence = "```actions"

// parseAssistantOutput splits the raw model output into the free-text
// reply and the decoded action list. The model is instructed to emit
// actions in a fenced block:
//
//	```actions
//	[{"action":"add_to_list","title":"Naruto","status":"watching"}]
//	```
//
// A missing or malformed block yields zero actions; the reply text is
// returned either way with the block stripped.
func parseAssistantOutput(raw string) (string, []Action) {
	start := strings.Index(raw, actionsFence)
	if start < 0 {
		return strings.TrimSpace(raw), nil
	}

	rest := raw[start+len(actionsFence):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(raw), nil
	}

	payload := strings.TrimSpace(rest[:end])
	reply := strings.TrimSpace(raw[:start] + rest[end+3:])

	var actions []Action
	if err := json.Unmarshal([]byte(payload), &actions); err != nil {
		// Some models emit a single object instead of an array.
		var one Action
		if err := json.Unmarshal([]byte(payload), &one); err != nil {
			return reply, nil
		}
		actions = []Action{one}
	}

	kept := actions[:0]
	for _, a := range actions {
		switch a.Kind {
		case ActionAddToList, ActionRate, ActionRemove, ActionSearch:
			kept = append(kept, a)
		}
	}
	return reply, kept
}
