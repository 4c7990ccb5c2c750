package model

import "encoding/json"

// IntakeKind tags the shape of one collected intake answer.
type IntakeKind string

const (
	IntakeText   IntakeKind = "text"
	IntakeChoice IntakeKind = "choice"
	IntakeScale  IntakeKind = "scale"
	IntakeOpaque IntakeKind = "opaque"
)

// IntakeAnswer is a tagged union of the known question-answer shapes a job
// intake form can collect. Exactly the variant matching Kind is set; Extra
// carries payloads the core does not interpret and passes through
// untouched.
type IntakeAnswer struct {
	Kind     IntakeKind      `json:"kind"`
	Question string          `json:"question"`
	Text     *TextAnswer     `json:"text,omitempty"`
	Choice   *ChoiceAnswer   `json:"choice,omitempty"`
	Scale    *ScaleAnswer    `json:"scale,omitempty"`
	Extra    json.RawMessage `json:"extra,omitempty"`
}

// TextAnswer is a free-form response.
type TextAnswer struct {
	Value string `json:"value"`
}

// ChoiceAnswer records the selected options of a multiple-choice question.
type ChoiceAnswer struct {
	Selected []string `json:"selected"`
}

// ScaleAnswer records a bounded numeric rating.
type ScaleAnswer struct {
	Value int `json:"value"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}
