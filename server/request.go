package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hupe1980/toolrelay/core"
)

// ChatMessage is one caller supplied message.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages        []ChatMessage `json:"messages" validate:"dive"`
	Temperature     *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxOutputTokens *int64        `json:"max_output_tokens,omitempty" validate:"omitempty,gt=0"`
}

// CoreMessages converts the request messages.
func (r ChatRequest) CoreMessages() []core.Message {
	msgs := make([]core.Message, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = core.Message{Role: core.Role(m.Role), Content: m.Content}
	}
	return msgs
}

// RequestError is a client error reported with 400.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func invalidRequest(format string, args ...any) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeChatRequest(r *http.Request, maxBytes int64) (ChatRequest, error) {
	var req ChatRequest
	if r.Body == nil {
		return req, invalidRequest("request body is required")
	}

	body := io.Reader(r.Body)
	if maxBytes > 0 {
		body = io.LimitReader(r.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return req, invalidRequest("read request body: %v", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return req, invalidRequest("request body exceeds %d bytes", maxBytes)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return req, invalidRequest("request body is required")
	}

	if err := json.Unmarshal(data, &req); err != nil {
		return req, invalidRequest("invalid JSON body: %v", err)
	}

	if err := validate.Struct(req); err != nil {
		return req, validationError(err)
	}
	return req, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalidRequest("invalid request: %v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", fe.Namespace(), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}
	return invalidRequest("invalid request: %s", strings.Join(msgs, "; "))
}
