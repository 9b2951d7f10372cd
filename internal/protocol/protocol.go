// Package protocol implements the msgbox wire envelope: one JSON object per
// line, a Request going to the server and a Response coming back.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/msgbox/internal/common"
)

const (
	DefaultMaxRequestSize   = 2048
	DefaultMaxCommandLength = 50

	// CodeUnknownCommand is sent for a well-formed request naming no known command.
	CodeUnknownCommand = "UNKNOWN_COMMAND"

	// DefaultSuccessMessage accompanies structured results without their own message.
	DefaultSuccessMessage = "Operation completed successfully"
)

// Request is a decoded client command.
type Request struct {
	Command string         `json:"command"`
	Data    map[string]any `json:"data"`
}

// Param returns the named parameter as a trimmed string. Missing and
// non-string values yield "".
func (r Request) Param(name string) string {
	return strings.TrimSpace(r.RawParam(name))
}

// RawParam is Param without trimming, for values such as passwords where
// surrounding whitespace is significant.
func (r Request) RawParam(name string) string {
	s, _ := r.Data[name].(string)
	return s
}

// Response is the server answer to exactly one Request.
type Response struct {
	Success   bool
	Message   string
	Data      map[string]any
	ErrorCode string
}

// OK builds a successful response.
func OK(message string, data map[string]any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Fail builds a failed response carrying a machine-readable code.
func Fail(code, message string) Response {
	return Response{Message: message, ErrorCode: code}
}

// FromError renders err as a failed response, using the error kind for the code.
// Only the user-facing part of a classified error is sent; causes stay in logs.
func FromError(err error) Response {
	var e *common.Error
	if !errors.As(err, &e) {
		return Fail(common.KindUnexpected.Code(), "Unexpected error while processing the request")
	}
	return Fail(e.Kind.Code(), e.Msg)
}

// wireResponse always carries every key; absent data and code are null.
type wireResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	ErrorCode *string        `json:"error_code"`
}

// Codec applies size and shape limits to request envelopes.
type Codec struct {
	MaxRequestSize   int
	MaxCommandLength int
}

// NewCodec returns a Codec; non-positive limits fall back to the defaults.
func NewCodec(maxRequestSize, maxCommandLength int) *Codec {
	if maxRequestSize <= 0 {
		maxRequestSize = DefaultMaxRequestSize
	}
	if maxCommandLength <= 0 {
		maxCommandLength = DefaultMaxCommandLength
	}
	return &Codec{MaxRequestSize: maxRequestSize, MaxCommandLength: maxCommandLength}
}

// DecodeRequest parses one request frame. Every rejection is a
// common.KindProtocol error. A missing data member decodes as an empty map.
func (c *Codec) DecodeRequest(raw []byte) (Request, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Request{}, common.Protocol("empty request")
	}
	if len(raw) > c.MaxRequestSize {
		return Request{}, common.Protocol("request exceeds %d bytes", c.MaxRequestSize)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Request{}, common.Protocol("malformed request: expected a JSON object")
	}
	if envelope == nil {
		return Request{}, common.Protocol("malformed request: expected a JSON object")
	}

	rawCmd, ok := envelope["command"]
	if !ok {
		return Request{}, common.Protocol("missing command")
	}
	var cmd string
	if err := json.Unmarshal(rawCmd, &cmd); err != nil {
		return Request{}, common.Protocol("command must be a string")
	}
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return Request{}, common.Protocol("missing command")
	}
	if len(cmd) > c.MaxCommandLength {
		return Request{}, common.Protocol("command exceeds %d characters", c.MaxCommandLength)
	}

	data := map[string]any{}
	if rawData, ok := envelope["data"]; ok && !isNull(rawData) {
		if err := json.Unmarshal(rawData, &data); err != nil || data == nil {
			return Request{}, common.Protocol("data must be an object")
		}
	}

	return Request{Command: cmd, Data: data}, nil
}

// EncodeRequest renders a request frame without the trailing newline.
func (c *Codec) EncodeRequest(r Request) ([]byte, error) {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if len(b) > c.MaxRequestSize {
		return nil, common.Validation("request exceeds %d bytes", c.MaxRequestSize)
	}
	return b, nil
}

// EncodeResponse renders a response frame without the trailing newline.
func EncodeResponse(r Response) ([]byte, error) {
	w := wireResponse{Success: r.Success, Message: r.Message}
	if len(r.Data) > 0 {
		w.Data = r.Data
	}
	if r.ErrorCode != "" {
		code := r.ErrorCode
		w.ErrorCode = &code
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return b, nil
}

// DecodeResponse parses a response frame received by the client.
func DecodeResponse(raw []byte) (Response, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Response{}, common.Protocol("empty response")
	}
	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return Response{}, common.Protocol("malformed response")
	}
	r := Response{Success: w.Success, Message: w.Message, Data: w.Data}
	if w.ErrorCode != nil {
		r.ErrorCode = *w.ErrorCode
	}
	return r, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
