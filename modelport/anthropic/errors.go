package anthropic

import (
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/agentmesh-go/agentmesh"
)

type errorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// wrapErr classifies an error returned by the Anthropic SDK: API errors
// (4xx/5xx with a JSON body) become agentmesh.ProviderError; everything
// else (DNS failures, connection resets, context cancellation) becomes
// agentmesh.TransportError.
func wrapErr(provider string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Error()
		if raw := apiErr.RawJSON(); raw != "" {
			var payload errorPayload
			if json.Unmarshal([]byte(raw), &payload) == nil && payload.Error.Message != "" {
				message = payload.Error.Message
			}
		}
		return &agentmesh.ProviderError{Provider: provider, StatusCode: apiErr.StatusCode, Message: message}
	}

	return &agentmesh.TransportError{Provider: provider, Err: err}
}
