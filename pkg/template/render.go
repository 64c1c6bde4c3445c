package template

import "encoding/json"

// templatedRender is the structured shape a templated-content LLM call is
// asked to return. Spec §9 open question: when JSON parsing fails the
// runner falls back to treating the raw text as the stem, leaving
// CorrectAnswer unset — scoring then proceeds with "no canonical answer"
// rather than failing the item.
type templatedRender struct {
	Stem          string   `json:"stem"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer any      `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// parseTemplatedRender tries to decode text as a templatedRender; on
// failure it falls back to a plain-stem render with no structured fields.
func parseTemplatedRender(text string) templatedRender {
	var r templatedRender
	if err := json.Unmarshal([]byte(text), &r); err != nil || r.Stem == "" {
		return templatedRender{Stem: text}
	}
	return r
}
