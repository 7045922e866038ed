package models

// Document is one passage of the corpus. Position is its 0-based index, which is
// also the position of its vector in the index.
type Document struct {
	ID       string                 `json:"id"`
	Position int                    `json:"position"`
	Text     string                 `json:"text"`
	Source   string                 `json:"source,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SourceDocument is a document returned by retrieval together with its distance to the query.
type SourceDocument struct {
	Position int                    `json:"position"`
	Text     string                 `json:"text"`
	Distance float64                `json:"distance"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
