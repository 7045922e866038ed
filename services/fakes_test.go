package services

import (
	"context"
	"fmt"

	"github/itish2003/qwenprimer/models"
)

// mapEmbedder returns fixed vectors for known texts. calls counts document
// batches, queries counts EmbedQuery calls.
type mapEmbedder struct {
	vectors map[string][]float32
	calls   int
	queries int
}

func (m *mapEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := m.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (m *mapEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	m.queries++
	v, ok := m.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

// recordingGenerator echoes a fixed answer and remembers what it was asked.
type recordingGenerator struct {
	answer   string
	err      error
	prompts  []string
	decoding []models.DecodingOptions
}

func (g *recordingGenerator) Name() string { return "recording" }

func (g *recordingGenerator) Generate(_ context.Context, prompt string, opts models.DecodingOptions) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.decoding = append(g.decoding, opts)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

// builtinVectors places the four built-in passages on distinct axes.
func builtinVectors() map[string][]float32 {
	docs := DefaultDocuments()
	return map[string][]float32{
		docs[0].Text: {1, 0, 0, 0},
		docs[1].Text: {0, 1, 0, 0},
		docs[2].Text: {0, 0, 1, 0},
		docs[3].Text: {0, 0, 0, 1},

		"Who is Uros?":             {0.1, 0, 0.3, 0.9},
		"What does OpenVINO do?":   {0.9, 0.2, 0, 0},
		"Tell me about everything": {0.5, 0.5, 0.5, 0.5},
	}
}
