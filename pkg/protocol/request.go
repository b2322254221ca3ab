package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/teslashibe/llm-relay/pkg/inference"
)

// ErrMissingImage is returned when an image request carries no image.
var ErrMissingImage = errors.New("protocol: image request has no image")

// CoercionError reports a request field that could not be converted to the
// type the provider expects.
type CoercionError struct {
	Field string
	Want  string // "number", "integer" or "text"
	Value string // raw JSON as received
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("protocol: %s must be %s, got %s", e.Field, article(e.Want), e.Value)
}

func article(want string) string {
	if want == "integer" {
		return "an integer"
	}
	return "a " + want
}

// Positional field order for array payloads.
var (
	textFieldOrder  = []string{"prompt", "system_prompt", "max_tokens", "temperature"}
	imageFieldOrder = []string{"image_base64", "prompt", "system_prompt"}
)

// Accepted alternative field names.
var fieldAliases = map[string][]string{
	"system_prompt": {"system"},
	"image_base64":  {"image", "base64Image"},
}

// DecodeCompletion builds a completion request from an event payload.
func DecodeCompletion(data json.RawMessage, d TextDefaults) (*inference.CompletionRequest, error) {
	t, err := decodeText(data, d)
	if err != nil {
		return nil, err
	}
	return &inference.CompletionRequest{
		Prompt:       t.Prompt,
		SystemPrompt: t.SystemPrompt,
		MaxTokens:    t.MaxTokens,
		Temperature:  t.Temperature,
	}, nil
}

// DecodeChat builds a chat request from an event payload.
func DecodeChat(data json.RawMessage, d TextDefaults) (*inference.ChatRequest, error) {
	t, err := decodeText(data, d)
	if err != nil {
		return nil, err
	}
	return &inference.ChatRequest{
		Prompt:       t.Prompt,
		SystemPrompt: t.SystemPrompt,
		MaxTokens:    t.MaxTokens,
		Temperature:  t.Temperature,
	}, nil
}

// DecodeImage builds an image request from an event payload. The image is
// required; the prompts fall back to d.
func DecodeImage(data json.RawMessage, d ImageDefaults) (*inference.ImageChatRequest, error) {
	f, err := payloadFields(data, imageFieldOrder)
	if err != nil {
		return nil, err
	}

	req := &inference.ImageChatRequest{}
	if req.ImageBase64, err = f.text("image_base64", ""); err != nil {
		return nil, err
	}
	if req.ImageBase64 == "" {
		return nil, ErrMissingImage
	}
	if req.Prompt, err = f.text("prompt", d.Prompt); err != nil {
		return nil, err
	}
	if req.SystemPrompt, err = f.text("system_prompt", d.SystemPrompt); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeText(data json.RawMessage, d TextDefaults) (TextDefaults, error) {
	f, err := payloadFields(data, textFieldOrder)
	if err != nil {
		return TextDefaults{}, err
	}

	var t TextDefaults
	if t.Prompt, err = f.text("prompt", d.Prompt); err != nil {
		return t, err
	}
	if t.SystemPrompt, err = f.text("system_prompt", d.SystemPrompt); err != nil {
		return t, err
	}
	if t.MaxTokens, err = f.integer("max_tokens", d.MaxTokens); err != nil {
		return t, err
	}
	if t.Temperature, err = f.number("temperature", d.Temperature); err != nil {
		return t, err
	}
	return t, nil
}

// fields holds a payload's values by canonical field name.
type fields map[string]json.RawMessage

// payloadFields accepts an object (by field name), an array (in positional
// order) or a single scalar (the first positional field).
func payloadFields(data json.RawMessage, order []string) (fields, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return fields{}, nil
	}

	switch data[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("protocol: decode payload: %w", err)
		}
		f := fields{}
		for _, name := range order {
			if v, ok := obj[name]; ok {
				f[name] = v
				continue
			}
			for _, alias := range fieldAliases[name] {
				if v, ok := obj[alias]; ok {
					f[name] = v
					break
				}
			}
		}
		return f, nil
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, fmt.Errorf("protocol: decode payload: %w", err)
		}
		f := fields{}
		for i, v := range arr {
			if i >= len(order) {
				break
			}
			f[order[i]] = v
		}
		return f, nil
	default:
		if !json.Valid(data) {
			return nil, errors.New("protocol: decode payload: invalid JSON")
		}
		return fields{order[0]: data}, nil
	}
}

// falsy reports whether raw is null, false, "" or zero.
func falsy(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	switch s {
	case "", "null", "false", `""`:
		return true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == 0 {
		return true
	}
	return false
}

func (f fields) text(name, def string) (string, error) {
	raw, ok := f[name]
	if !ok || falsy(raw) {
		return def, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", &CoercionError{Field: name, Want: "text", Value: string(raw)}
		}
		return s, nil
	case '{', '[':
		return "", &CoercionError{Field: name, Want: "text", Value: string(raw)}
	default:
		return string(raw), nil
	}
}

func (f fields) number(name string, def float64) (float64, error) {
	raw, ok := f[name]
	if !ok || falsy(raw) {
		return def, nil
	}

	n, ok := parseNumber(raw)
	if !ok {
		return 0, &CoercionError{Field: name, Want: "number", Value: string(raw)}
	}
	return n, nil
}

// integer truncates fractional values.
func (f fields) integer(name string, def int) (int, error) {
	raw, ok := f[name]
	if !ok || falsy(raw) {
		return def, nil
	}

	if s, isString := unquote(raw); isString {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, nil
		}
	}
	n, ok := parseNumber(raw)
	if !ok || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, &CoercionError{Field: name, Want: "integer", Value: string(raw)}
	}
	return int(math.Trunc(n)), nil
}

// parseNumber accepts a JSON number or a string holding one.
func parseNumber(raw json.RawMessage) (float64, bool) {
	s := string(bytes.TrimSpace(raw))
	if u, isString := unquote(raw); isString {
		s = strings.TrimSpace(u)
	} else if s == "true" || s == "false" || s[0] == '{' || s[0] == '[' {
		return 0, false
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func unquote(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// ErrorText renders a failed request as the placeholder published in place
// of a response.
func ErrorText(err error) string {
	return fmt.Sprintf("[server says: oops, error: %s]", inference.UserMessage(err))
}
