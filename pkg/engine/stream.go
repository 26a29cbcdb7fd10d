package engine

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/buildflow/buildflow/internal/model"
)

// wireMessage is the Docker API build message shape. Exactly one field
// is populated per message; anything else is passed through opaque.
type wireMessage struct {
	Stream   string          `json:"stream,omitempty"`
	Status   string          `json:"status,omitempty"`
	Progress string          `json:"progress,omitempty"`
	Aux      json.RawMessage `json:"aux,omitempty"`
	ID       string          `json:"id,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// DecodeLine turns one line of builder output into raw events.
//
// JSON lines follow the Docker API wire format; a single "stream" value
// may carry several output lines, each of which becomes its own event so
// ordering downstream matches what a terminal would have shown. Non-JSON
// lines (Podman, classic builder) pass through as line events.
func DecodeLine(line string) []model.RawEvent {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return []model.RawEvent{model.LineEvent(line)}
	}

	var msg wireMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return []model.RawEvent{model.LineEvent(line)}
	}

	switch {
	case msg.Stream != "":
		var events []model.RawEvent
		for _, l := range strings.Split(strings.TrimRight(msg.Stream, "\n"), "\n") {
			events = append(events, model.LineEvent(l))
		}
		return events
	case len(msg.Aux) > 0:
		return []model.RawEvent{{Aux: msg.Aux}}
	case msg.Status != "":
		return []model.RawEvent{{Status: msg.Status}}
	case msg.Progress != "":
		return []model.RawEvent{{Progress: msg.Progress}}
	case msg.ID != "":
		return []model.RawEvent{{ID: msg.ID}}
	case msg.Error != "":
		// Errors terminate the build; surface the text so verbose mode
		// still shows it, and let the process exit code carry the failure.
		return []model.RawEvent{{Other: msg.Error}}
	default:
		return []model.RawEvent{{Other: trimmed}}
	}
}
