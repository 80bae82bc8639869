package pkg

import (
	"encoding/json"
	"time"
)

// MessageRole describes who authored a message.  A triage conversation only
// has two participants.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a chat message in a session.  Messages are append-only
// and ordered by arrival.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// DiagnosisKind tags which shape a Diagnosis holds.
type DiagnosisKind int

const (
	DiagnosisNone DiagnosisKind = iota
	DiagnosisSingle
	DiagnosisCandidates
)

// Diagnosis is the reconciled outcome of a first turn.  It is either a single
// confirmed label or an ordered list of up to three image-derived candidates
// when the classifier prediction could not be confirmed.
type Diagnosis struct {
	Kind       DiagnosisKind
	Label      string
	Candidates []string
}

// Single returns a Diagnosis holding one label.
func Single(label string) Diagnosis {
	return Diagnosis{Kind: DiagnosisSingle, Label: label}
}

// Candidates returns a Diagnosis holding an ordered candidate list.
func Candidates(labels []string) Diagnosis {
	out := make([]string, len(labels))
	copy(out, labels)
	return Diagnosis{Kind: DiagnosisCandidates, Candidates: out}
}

// IsZero reports whether no diagnosis has been made.
func (d Diagnosis) IsZero() bool { return d.Kind == DiagnosisNone }

// Primary returns the label used for the training log: the single label or
// the first candidate.
func (d Diagnosis) Primary() string {
	switch d.Kind {
	case DiagnosisSingle:
		return d.Label
	case DiagnosisCandidates:
		if len(d.Candidates) > 0 {
			return d.Candidates[0]
		}
	}
	return ""
}

// String renders the diagnosis for prompts.
func (d Diagnosis) String() string {
	switch d.Kind {
	case DiagnosisSingle:
		return d.Label
	case DiagnosisCandidates:
		b, _ := json.Marshal(d.Candidates)
		return string(b)
	}
	return "Unknown Condition"
}

// MarshalJSON encodes a single diagnosis as a string, candidates as an array
// and the zero value as null.
func (d Diagnosis) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DiagnosisSingle:
		return json.Marshal(d.Label)
	case DiagnosisCandidates:
		return json.Marshal(d.Candidates)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts the three shapes produced by MarshalJSON.
func (d *Diagnosis) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Diagnosis{}
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		*d = Single(label)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*d = Candidates(list)
	return nil
}

// TurnRequest is one incoming user message.  Image holds a base64 encoded
// image and may be empty.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"`
}

// TurnResponse is surfaced to the UI.  PredictedDisease and
// ImageDescription are only populated on the first turn of a session.
type TurnResponse struct {
	PredictedDisease *Diagnosis `json:"predicted_disease"`
	TreatmentInfo    string     `json:"treatment_info"`
	ImageDescription *string    `json:"image_description"`
}

// CreateSessionResponse is returned when a new session is opened.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
