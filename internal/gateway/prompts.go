package gateway

import "strings"

const insightsSystemPrompt = "You are a supportive study coach for a medical student preparing for exams. " +
	"You analyse self-reported study sessions and give short, practical advice in markdown."

const verifySystemPrompt = "You check screenshots submitted as proof of practice-question work. " +
	"Answer only with JSON matching the provided schema."

const verifyUserPrompt = "Decide whether this image is legitimate evidence of completed multiple-choice practice questions " +
	"(for example a question bank results page or a scored test summary). " +
	"Set verified to true only for genuine practice-question evidence. " +
	"Set count to the number of solved questions visible in the image, or 0 when the activity is genuine but no number is shown. " +
	"Use feedback for one or two sentences addressed to the student."

func insightsUserPrompt(payload []byte) string {
	var b strings.Builder
	b.WriteString("Here are my most recent study sessions as JSON, newest first. ")
	b.WriteString("durationMinutes is active study time and concentration is a 1-5 self rating.\n\n")
	b.Write(payload)
	b.WriteString("\n\nPlease respond in markdown with:\n")
	b.WriteString("- a short overview of my study pattern\n")
	b.WriteString("- subjects that need more time or focus\n")
	b.WriteString("- when my concentration tends to be best or worst\n")
	b.WriteString("- three concrete suggestions for the coming week\n")
	return b.String()
}

func verificationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"verified": map[string]any{"type": "boolean"},
			"count":    map[string]any{"type": "integer", "minimum": 0},
			"feedback": map[string]any{"type": "string"},
		},
		"required":             []string{"verified", "count", "feedback"},
		"additionalProperties": false,
	}
}
