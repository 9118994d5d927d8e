package ai

import "context"

// HintInput describes the item a student is stuck on.
type HintInput struct {
	ActivityTitle string
	Subject       string
	Kind          string
	Statement     string
	AuthorHint    string
	Data          map[string]interface{}
}

// HintResult is a generated hint.
type HintResult struct {
	Hint  string `json:"hint"`
	Model string `json:"model"`
}

// Hinter produces study hints without revealing answers.
type Hinter interface {
	Hint(ctx context.Context, input HintInput) (HintResult, error)
}
