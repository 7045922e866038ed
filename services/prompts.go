package services

import (
	"strings"

	"github/itish2003/qwenprimer/models"
)

const (
	ragMaxTokens       = 120
	recommendMaxTokens = 500
	chatMaxTokens      = 300

	// EmptyAnswerMessage is shown when the model returns nothing.
	EmptyAnswerMessage = "(The model returned an empty response. Try changing the prompt.)"
)

// BuildRAGPrompt puts the retrieved passages, in retrieval order, into the fixed
// answer template. Nothing is escaped or truncated.
func BuildRAGPrompt(question string, docs []models.SourceDocument) string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	context := strings.Join(texts, "\n")

	var sb strings.Builder
	sb.WriteString("\nYou are an assistant. Use the context below to answer.\n\n")
	sb.WriteString("Context:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:\n")
	return sb.String()
}

// BuildRecommendationPrompt is the one-shot movie recommendation format.
func BuildRecommendationPrompt(question string) string {
	return "Question: " + question + "\nAnswer:"
}

// RecommendationDecoding stops before the model starts inventing the next question.
func RecommendationDecoding() models.DecodingOptions {
	return models.DecodingOptions{
		Sample:      true,
		Temperature: 0.8,
		TopP:        0.95,
		MaxTokens:   recommendMaxTokens,
		Stop:        []string{"Question:"},
	}
}

// BuildChatPrompt wraps one chat turn in the instruction template.
func BuildChatPrompt(input string) string {
	return "### Instruction: Recommend movies based on the user request.\n### User: " + input + "\n### Assistant:"
}

func ChatDecoding() models.DecodingOptions {
	return models.DecodingOptions{
		Sample:      true,
		Temperature: 0.7,
		MaxTokens:   chatMaxTokens,
		Stop:        []string{"###", "User:"},
	}
}

// BuildGroundedChatPrompt is BuildChatPrompt with retrieved passages listed before the user turn.
func BuildGroundedChatPrompt(input string, docs []models.SourceDocument) string {
	if len(docs) == 0 {
		return BuildChatPrompt(input)
	}
	var sb strings.Builder
	sb.WriteString("### Instruction: Recommend movies based on the user request. Use the notes if they help.\n")
	sb.WriteString("### Notes:\n")
	for _, d := range docs {
		sb.WriteString("- ")
		sb.WriteString(d.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("### User: ")
	sb.WriteString(input)
	sb.WriteString("\n### Assistant:")
	return sb.String()
}
