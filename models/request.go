package models

type GenerateRequest struct {
	Prompt   string          `json:"prompt"`
	Decoding DecodingOptions `json:"-"`
}

// QueryTextRequest asks a question against the indexed documents. TopK <= 0 means the configured default.
type QueryTextRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}
