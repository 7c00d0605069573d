package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// NormalizeError turns a failure body from provider p into an ErrorResponse.
// The raw body is always kept on the result.
func NormalizeError(p Provider, status int, body []byte) (*ErrorResponse, error) {
	prof, err := lookupProfile(p)
	if err != nil {
		return nil, err
	}
	resp, err := prof.parseError(status, body)
	if err != nil {
		var mErr *MalformedResponseError
		if errors.As(err, &mErr) {
			mErr.Provider = p
		}
		return nil, err
	}
	return resp, nil
}

// parseNestedError reads {error: {message, type}, type}. A missing or
// non-string error.message is a contract violation. The type fields are
// optional and non-string values are kept as their JSON text.
func parseNestedError(status int, body []byte) (*ErrorResponse, error) {
	env, errObj, msg, err := nestedErrorFields(status, body)
	if err != nil {
		return nil, err
	}
	return &ErrorResponse{
		Message:    msg,
		ErrorType:  jsonText(errObj["type"]),
		Type:       jsonText(env["type"]),
		StatusCode: status,
		Raw:        cloneRaw(body),
	}, nil
}

// parseFlatError reads {error: "..."}. An absent or null error key yields
// UnknownErrorMessage rather than failing.
func parseFlatError(status int, body []byte) (*ErrorResponse, error) {
	resp := &ErrorResponse{
		Message:    UnknownErrorMessage,
		StatusCode: status,
		Raw:        cloneRaw(body),
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return resp, nil
	}
	raw, ok := env["error"]
	if !ok || isJSONNull(raw) {
		return resp, nil
	}
	resp.Message = jsonText(raw)
	return resp, nil
}

// parseOpenAIError reads the OpenAI envelope {error: {message, type, code, param}}.
// error.message is checked before go-openai's decoder sees the body, since
// that decoder accepts a null message.
func parseOpenAIError(status int, body []byte) (*ErrorResponse, error) {
	_, errObj, msg, err := nestedErrorFields(status, body)
	if err != nil {
		return nil, err
	}
	resp := &ErrorResponse{
		Message:    msg,
		StatusCode: status,
		Raw:        cloneRaw(body),
	}

	var env openai.ErrorResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		resp.ErrorType = env.Error.Type
		if env.Error.Code != nil {
			resp.Code = fmt.Sprint(env.Error.Code)
		}
		return resp, nil
	}
	resp.ErrorType = jsonText(errObj["type"])
	resp.Code = jsonText(errObj["code"])
	return resp, nil
}

// nestedErrorFields decodes the outer envelope and its error object, and
// requires error.message to be a JSON string.
func nestedErrorFields(status int, body []byte) (env, errObj map[string]json.RawMessage, msg string, err error) {
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, "", malformedError(status, body, "error.message", err)
	}
	raw, ok := env["error"]
	if !ok || isJSONNull(raw) {
		return nil, nil, "", malformedError(status, body, "error.message", nil)
	}
	if err := json.Unmarshal(raw, &errObj); err != nil {
		return nil, nil, "", malformedError(status, body, "error.message", err)
	}
	rawMsg, ok := errObj["message"]
	if !ok || isJSONNull(rawMsg) {
		return nil, nil, "", malformedError(status, body, "error.message", nil)
	}
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		return nil, nil, "", malformedError(status, body, "error.message", err)
	}
	return env, errObj, msg, nil
}

func malformedError(status int, body []byte, field string, err error) *MalformedResponseError {
	return &MalformedResponseError{
		Field:      field,
		StatusCode: status,
		Body:       cloneRaw(body),
		Err:        err,
	}
}

func cloneRaw(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

// jsonText renders a JSON value as text: strings are unquoted, null or
// absent values are empty, anything else is kept as its JSON encoding.
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 || isJSONNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
