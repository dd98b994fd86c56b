package watermark

import (
	"encoding/json"
	"strings"
	"time"

	"reportpoller/internal/types"
)

// StateKind tags the shape of the raw persisted state.
type StateKind int

const (
	// StateEmpty means nothing has been persisted yet.
	StateEmpty StateKind = iota
	// StateLegacy is a single bare timestamp shared by every activity,
	// written before watermarks were tracked per activity.
	StateLegacy
	// StateDocument is a JSON object keyed by activity.
	StateDocument
	// StateCorrupt is anything else, including valid JSON that is not an object.
	StateCorrupt
)

func (k StateKind) String() string {
	switch k {
	case StateEmpty:
		return "empty"
	case StateLegacy:
		return "legacy"
	case StateDocument:
		return "document"
	case StateCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// State is the decoded persisted value. Exactly one payload field is
// meaningful, selected by Kind.
type State struct {
	Kind StateKind
	// Legacy holds the shared timestamp for StateLegacy.
	Legacy time.Time
	// Entries holds the raw JSON members for StateDocument.
	Entries map[string]json.RawMessage
	// Raw is the undecodable input for StateCorrupt.
	Raw string
}

// decoder is one parse strategy; it reports false when raw is not its shape.
type decoder func(raw string) (State, bool)

// decoders are tried in order; the first match wins. The final fallback is
// StateCorrupt.
var decoders = []decoder{
	decodeEmpty,
	decodeDocument,
	decodeOtherJSON,
	decodeLegacy,
}

// Decode classifies raw persisted state.
func Decode(raw string) State {
	for _, decode := range decoders {
		if st, ok := decode(raw); ok {
			return st
		}
	}
	return State{Kind: StateCorrupt, Raw: raw}
}

func decodeEmpty(raw string) (State, bool) {
	if strings.TrimSpace(raw) != "" {
		return State{}, false
	}
	return State{Kind: StateEmpty}, true
}

func decodeDocument(raw string) (State, bool) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil || entries == nil {
		return State{}, false
	}
	return State{Kind: StateDocument, Entries: entries}, true
}

// decodeOtherJSON catches valid JSON that is not an object ("42", "[]",
// "\"x\"", "null").
func decodeOtherJSON(raw string) (State, bool) {
	if !json.Valid([]byte(raw)) {
		return State{}, false
	}
	return State{Kind: StateCorrupt, Raw: raw}, true
}

func decodeLegacy(raw string) (State, bool) {
	t, err := types.ParseTimestamp(strings.TrimSpace(raw))
	if err != nil {
		return State{}, false
	}
	return State{Kind: StateLegacy, Legacy: t}, true
}
