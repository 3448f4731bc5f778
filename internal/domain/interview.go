package domain

// InterviewMethod selects the execution path for a planned interview.
type InterviewMethod string

const (
	InterviewEmail InterviewMethod = "email"
	InterviewPhone InterviewMethod = "phone"
)

// Question is one scripted interview question. Position orders questions in
// the spoken script; zero means "use input order".
type Question struct {
	Position int    `json:"position,omitempty"`
	Text     string `json:"text"`
}

// PhoneScript configures one realtime phone interview.
type PhoneScript struct {
	Instructions    string     `json:"instructions,omitempty"`
	Questions       []Question `json:"questions,omitempty"`
	ClosingQuestion string     `json:"closing_question,omitempty"`
	Voice           string     `json:"voice,omitempty"`
	Language        string     `json:"language,omitempty"`
	Temperature     float64    `json:"temperature,omitempty"`
}

// InterviewPlan is produced by the interview-planning capability.
type InterviewPlan struct {
	Method      InterviewMethod `json:"method"`
	PhoneNumber string          `json:"phone_number,omitempty"`
	Email       string          `json:"email,omitempty"`
	Script      PhoneScript     `json:"script"`
}
