package phone

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsroom/internal/domain"
	"newsroom/internal/infrastructure/realtime"
)

// endMarker is the exact phrase the interviewer speaks to close the call.
// Matching is case-insensitive on the transcript side.
const endMarker = "HAASTATTELU PÄÄTTYI KIITOS"

// endPhrases close the call when found anywhere in an assistant transcript.
var endPhrases = []string{
	"kiitos haastattelusta",
	"hyvää päivänjatkoa",
	"haastattelu päättyi kiitos",
	"nämä olivat kaikki kysymykset",
}

var supportedVoices = map[string]bool{
	"alloy":   true,
	"ash":     true,
	"ballad":  true,
	"coral":   true,
	"echo":    true,
	"sage":    true,
	"shimmer": true,
	"verse":   true,
}

const defaultInstructionsFI = `Olet ystävällinen ja ammattimainen suomalainen toimittaja, joka tekee puhelinhaastattelua uutisartikkelia varten. Puhu selkeää suomea, kysy yksi kysymys kerrallaan ja anna haastateltavan vastata rauhassa. Älä keskeytä. Pidä kysymykset lyhyinä.`

// defaultQuestionsFI is the fixed question set spoken when no call-specific
// script was registered.
var defaultQuestionsFI = []domain.Question{
	{Position: 1, Text: "Mitä mieltä olette viime päivien uutistapahtumista?"},
	{Position: 2, Text: "Miten nämä tapahtumat ovat vaikuttaneet omaan arkeenne?"},
}

const transcriptionPromptFI = "Keskustelu on suomenkielinen puhelinhaastattelu. Litteroi puhe suomeksi."

// ContainsEndPhrase reports whether an assistant transcript signals the end
// of the interview.
func ContainsEndPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range endPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ResolveSettings turns a planned phone script into concrete realtime session
// settings: validated voice, ordered questions folded into instructions and
// language defaults applied.
func ResolveSettings(script domain.PhoneScript, defaultVoice string, log *slog.Logger) realtime.SessionSettings {
	language := script.Language
	if language == "" {
		language = "fi"
	}

	// An explicitly requested but unsupported voice falls back to the
	// language-appropriate one; the configured default only covers scripts
	// that name no voice at all.
	voice := script.Voice
	if !supportedVoices[voice] {
		fallback := languageDefaultVoice(language)
		if voice == "" {
			if supportedVoices[defaultVoice] {
				fallback = defaultVoice
			}
		} else {
			log.Warn("unsupported voice, substituting", "requested", voice, "voice", fallback)
		}
		voice = fallback
	}

	temperature := script.Temperature
	if temperature <= 0 {
		temperature = 0.8
	}

	prompt := transcriptionPromptFI
	if language != "fi" {
		prompt = "Transcribe the phone interview in " + language + "."
	}

	return realtime.SessionSettings{
		Voice:               voice,
		Instructions:        buildInstructions(script),
		Temperature:         temperature,
		Language:            language,
		TranscriptionPrompt: prompt,
	}
}

func languageDefaultVoice(language string) string {
	if language == "fi" {
		return "coral"
	}
	return "alloy"
}

func buildInstructions(script domain.PhoneScript) string {
	var b strings.Builder

	scriptQuestions := script.Questions
	instructions := flattenHTML(script.Instructions)
	if instructions == "" {
		instructions = defaultInstructionsFI
		if len(scriptQuestions) == 0 {
			scriptQuestions = defaultQuestionsFI
		}
	}
	b.WriteString(instructions)

	questions := orderedQuestions(scriptQuestions)
	if len(questions) > 0 {
		b.WriteString("\n\nKysy täsmälleen seuraavat kysymykset tässä järjestyksessä. Älä keksi uusia kysymyksiä:\n")
		for i, q := range questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, flattenHTML(q.Text))
		}
	}
	if script.ClosingQuestion != "" {
		b.WriteString("\nLopuksi kysy vielä: ")
		b.WriteString(flattenHTML(script.ClosingQuestion))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nKun kaikki kysymykset on käsitelty, kiitä haastateltavaa ja sano täsmälleen: \"%s\".", endMarker)
	return b.String()
}

// orderedQuestions sorts by explicit position; entries without one keep their
// input order.
func orderedQuestions(questions []domain.Question) []domain.Question {
	ordered := make([]domain.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return effectivePosition(ordered[i], i) < effectivePosition(ordered[j], j)
	})
	return ordered
}

func effectivePosition(q domain.Question, index int) int {
	if q.Position > 0 {
		return q.Position
	}
	return index + 1
}

// flattenHTML strips markup from planner output. Scripts built from article
// bodies sometimes carry HTML fragments through.
func flattenHTML(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
