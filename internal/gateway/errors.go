package gateway

import (
	"errors"

	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/pkg/chatcompletion"
)

// ProviderError is any failure talking to an LLM provider: transport
// failure, a non-2xx status, or a success body that cannot be read.
// StatusCode is 0 when no HTTP status was received.
type ProviderError struct {
	Provider   model.Provider
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string { return e.Message }

// asProviderError normalizes err into a *ProviderError for p.
func asProviderError(p model.Provider, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Provider == "" {
			pe.Provider = p
		}
		return pe
	}
	var apiErr *chatcompletion.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: p, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return &ProviderError{Provider: p, Message: err.Error()}
}
