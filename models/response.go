package models

import "time"

type GenerateResponse struct {
	Text    string        `json:"text"`
	Elapsed time.Duration `json:"elapsed"`
}

type QueryRAGResponse struct {
	Answer     string           `json:"answer"`
	Prompt     string           `json:"prompt"`
	SourceDocs []SourceDocument `json:"source_docs,omitempty"`
	Elapsed    time.Duration    `json:"elapsed"`
}
