package ai

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyResponse is returned when a model call succeeds at the
	// transport level but carries no usable text.
	ErrEmptyResponse = errors.New("ai: empty model response")

	// ErrMalformedResponse is returned when a model reply cannot be read as
	// the JSON the prompt asked for.
	ErrMalformedResponse = errors.New("ai: malformed model response")
)

// Request carries the tunable parts of one text-generation call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces text from a prompt against a named model. An
// implementation wraps one provider; callers pick the model per call and
// parse the reply themselves.
type Generator interface {
	Run(ctx context.Context, model string, req Request) (string, error)
}

// CleanJSONResponse strips markdown code fences from a model reply and checks
// that what remains at least looks like a JSON value. Models wrap JSON in
// ```json fences often enough that every structured caller needs this.
func CleanJSONResponse(response string) (string, error) {
	cleaned := strings.TrimSpace(response)

	// Handles "```json\n[...]\n```" and bare "```" fences alike.
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	objectLike := strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}")
	arrayLike := strings.HasPrefix(cleaned, "[") && strings.HasSuffix(cleaned, "]")
	if !objectLike && !arrayLike {
		return "", ErrMalformedResponse
	}

	return cleaned, nil
}
