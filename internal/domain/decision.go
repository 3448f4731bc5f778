package domain

// Decision is the editor-in-chief verdict for one review pass. The decision
// value alone determines the next state-machine transition.
type Decision string

const (
	DecisionPublish   Decision = "publish"
	DecisionInterview Decision = "interview"
	DecisionRevise    Decision = "revise"
	DecisionReject    Decision = "reject"
)

// Issue is one independent finding a revision must address.
type Issue struct {
	Location    string `json:"location"`
	Description string `json:"description"`
}

// EditorialDecision is the structured output of an evaluation step.
type EditorialDecision struct {
	Decision        Decision `json:"decision"`
	Reasoning       string   `json:"reasoning"`
	Issues          []Issue  `json:"issues,omitempty"`
	Featured        bool     `json:"featured,omitempty"`
	InterviewNeeded bool     `json:"interview_needed,omitempty"`
}

// DefaultRejectionReason is used when a rejecting decision carries no
// reasoning text.
const DefaultRejectionReason = "Editorial rejection - no specific reason provided"

// RejectionReason derives the human-readable reason persisted with a
// rejection.
func (d EditorialDecision) RejectionReason() string {
	if d.Reasoning != "" {
		return d.Reasoning
	}
	return DefaultRejectionReason
}
