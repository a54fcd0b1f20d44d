package httpclient

import (
	"encoding/json"
	"io"
	"strings"
)

// maxErrorBody bounds how much of a downstream error body is read.
const maxErrorBody = 8 << 10

// ErrorDetail extracts a human-readable message from a downstream error
// body. It understands the {"error": {"code", "message"}} envelope and the
// bare {"detail": "..."} shape, and falls back to the raw body text.
func ErrorDetail(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(body) == 0 {
		return ""
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Detail != "" {
			return envelope.Detail
		}
	}

	return strings.TrimSpace(string(body))
}
