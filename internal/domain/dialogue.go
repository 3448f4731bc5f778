package domain

import "strings"

// Speaker identifies one side of an interview conversation.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// DialogueTurn is the persisted unit of interview conversation.
type DialogueTurn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// GroupTurns collapses a raw turn-by-turn log into readable dialogue: runs of
// consecutive entries by the same speaker merge into one turn, texts joined
// with newlines.
func GroupTurns(raw []DialogueTurn) []DialogueTurn {
	if len(raw) == 0 {
		return nil
	}

	grouped := make([]DialogueTurn, 0, len(raw))
	speaker := raw[0].Speaker
	texts := []string{raw[0].Text}

	for _, turn := range raw[1:] {
		if turn.Speaker == speaker {
			texts = append(texts, turn.Text)
			continue
		}
		grouped = append(grouped, DialogueTurn{Speaker: speaker, Text: strings.Join(texts, "\n")})
		speaker = turn.Speaker
		texts = []string{turn.Text}
	}

	grouped = append(grouped, DialogueTurn{Speaker: speaker, Text: strings.Join(texts, "\n")})
	return grouped
}
