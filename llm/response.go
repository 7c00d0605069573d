package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ChatResponse is the normalized result of a successful call.
// Provider attributes are copied verbatim; fields a provider does not send
// stay at their zero value. Fields keeps every top-level body key.
type ChatResponse struct {
	Provider     Provider      `json:"provider"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"`
	Role         string        `json:"role,omitempty"`
	Model        string        `json:"model"`
	StopReason   string        `json:"stop_reason,omitempty"`
	StopSequence *string       `json:"stop_sequence,omitempty"`
	CreatedAt    time.Time     `json:"created_at,omitzero"`
	Done         *bool         `json:"done,omitempty"`
	DoneReason   string        `json:"done_reason,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
	Timings      *Timings      `json:"timings,omitempty"`
	Content      []ContentItem `json:"content"`
	Message      *Message      `json:"message,omitempty"`

	// Fields holds every top-level key of the body as sent.
	Fields map[string]json.RawMessage `json:"-"`
}

// Usage holds token counters. Raw is the provider's usage object as sent.
type Usage struct {
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// Timings holds the duration counters reported by Ollama.
type Timings struct {
	TotalDuration      time.Duration `json:"total_duration"`
	LoadDuration       time.Duration `json:"load_duration"`
	PromptEvalCount    int64         `json:"prompt_eval_count"`
	PromptEvalDuration time.Duration `json:"prompt_eval_duration"`
	EvalCount          int64         `json:"eval_count"`
	EvalDuration       time.Duration `json:"eval_duration"`
}

// Text concatenates all text items.
func (r *ChatResponse) Text() string {
	var sb strings.Builder
	for _, item := range r.Content {
		if item.Kind == ContentKindText {
			sb.WriteString(item.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool invocations in content order.
func (r *ChatResponse) ToolUses() []ToolUse {
	return lo.FilterMap(r.Content, func(item ContentItem, _ int) (ToolUse, bool) {
		if item.Kind != ContentKindToolUse || item.ToolUse == nil {
			return ToolUse{}, false
		}
		return *item.ToolUse, true
	})
}

// DecodeChatResponse normalizes a success body from provider p.
// Mandatory fields are asserted strictly; a violation yields a
// *MalformedResponseError naming the field.
func DecodeChatResponse(p Provider, status int, body []byte) (*ChatResponse, error) {
	prof, err := lookupProfile(p)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("body is not a JSON object")
		}
		return nil, withProvider(malformedError(status, body, "", err), p)
	}

	resp := &ChatResponse{Provider: p, Fields: fields}
	if err := prof.decode(fields, resp); err != nil {
		var mErr *MalformedResponseError
		if errors.As(err, &mErr) {
			mErr.StatusCode = status
			mErr.Body = cloneRaw(body)
			mErr.Provider = p
		}
		return nil, err
	}
	return resp, nil
}

func withProvider(err *MalformedResponseError, p Provider) *MalformedResponseError {
	err.Provider = p
	return err
}

// requireFields returns an error naming the first key absent from fields.
func requireFields(fields map[string]json.RawMessage, names ...string) error {
	for _, name := range names {
		if _, ok := fields[name]; !ok {
			return &MalformedResponseError{Field: name}
		}
	}
	return nil
}

// decodeField unmarshals fields[name] into v, reporting type mismatches
// against the field.
func decodeField(fields map[string]json.RawMessage, name string, v any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &MalformedResponseError{Field: name, Err: err}
	}
	return nil
}

func decodeAnthropic(fields map[string]json.RawMessage, resp *ChatResponse) error {
	if err := requireFields(fields, "id", "type", "role", "model", "content", "stop_reason", "stop_sequence", "usage"); err != nil {
		return err
	}

	var stopReason *string
	if err := firstErr(
		decodeField(fields, "id", &resp.ID),
		decodeField(fields, "type", &resp.Type),
		decodeField(fields, "role", &resp.Role),
		decodeField(fields, "model", &resp.Model),
		decodeField(fields, "stop_reason", &stopReason),
		decodeField(fields, "stop_sequence", &resp.StopSequence),
	); err != nil {
		return err
	}
	resp.StopReason = lo.FromPtr(stopReason)

	content, err := NormalizeContent(fields["content"])
	if err != nil {
		return &MalformedResponseError{Field: "content", Err: err}
	}
	resp.Content = content

	if raw := fields["usage"]; !isJSONNull(raw) {
		var usage struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
		}
		if err := json.Unmarshal(raw, &usage); err != nil {
			return &MalformedResponseError{Field: "usage", Err: err}
		}
		resp.Usage = &Usage{InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens, Raw: cloneRaw(raw)}
	}
	return nil
}

func decodeOllama(fields map[string]json.RawMessage, resp *ChatResponse) error {
	if err := requireFields(fields, "model", "message"); err != nil {
		return err
	}
	if err := decodeField(fields, "model", &resp.Model); err != nil {
		return err
	}

	msgRaw := fields["message"]
	msg, content, err := decodeMessage(msgRaw)
	if err != nil {
		return &MalformedResponseError{Field: "message", Err: err}
	}
	resp.Message = msg
	resp.Content = content
	resp.Role = msg.Role

	var wire struct {
		CreatedAt          time.Time `json:"created_at"`
		Done               *bool     `json:"done"`
		DoneReason         string    `json:"done_reason"`
		TotalDuration      int64     `json:"total_duration"`
		LoadDuration       int64     `json:"load_duration"`
		PromptEvalCount    int64     `json:"prompt_eval_count"`
		PromptEvalDuration int64     `json:"prompt_eval_duration"`
		EvalCount          int64     `json:"eval_count"`
		EvalDuration       int64     `json:"eval_duration"`
	}
	if err := firstErr(
		decodeField(fields, "created_at", &wire.CreatedAt),
		decodeField(fields, "done", &wire.Done),
		decodeField(fields, "done_reason", &wire.DoneReason),
		decodeField(fields, "total_duration", &wire.TotalDuration),
		decodeField(fields, "load_duration", &wire.LoadDuration),
		decodeField(fields, "prompt_eval_count", &wire.PromptEvalCount),
		decodeField(fields, "prompt_eval_duration", &wire.PromptEvalDuration),
		decodeField(fields, "eval_count", &wire.EvalCount),
		decodeField(fields, "eval_duration", &wire.EvalDuration),
	); err != nil {
		return err
	}

	resp.CreatedAt = wire.CreatedAt
	resp.Done = wire.Done
	resp.DoneReason = wire.DoneReason
	resp.StopReason = wire.DoneReason

	_, hasPrompt := fields["prompt_eval_count"]
	_, hasEval := fields["eval_count"]
	if hasPrompt || hasEval {
		resp.Usage = &Usage{InputTokens: wire.PromptEvalCount, OutputTokens: wire.EvalCount}
	}
	if hasPrompt || hasEval || fields["total_duration"] != nil {
		resp.Timings = &Timings{
			TotalDuration:      time.Duration(wire.TotalDuration),
			LoadDuration:       time.Duration(wire.LoadDuration),
			PromptEvalCount:    wire.PromptEvalCount,
			PromptEvalDuration: time.Duration(wire.PromptEvalDuration),
			EvalCount:          wire.EvalCount,
			EvalDuration:       time.Duration(wire.EvalDuration),
		}
	}
	return nil
}

func decodeOpenAI(fields map[string]json.RawMessage, resp *ChatResponse) error {
	if err := requireFields(fields, "id", "model", "choices"); err != nil {
		return err
	}
	if err := firstErr(
		decodeField(fields, "id", &resp.ID),
		decodeField(fields, "object", &resp.Type),
		decodeField(fields, "model", &resp.Model),
	); err != nil {
		return err
	}

	var created int64
	if err := decodeField(fields, "created", &created); err != nil {
		return err
	}
	if created > 0 {
		resp.CreatedAt = time.Unix(created, 0).UTC()
	}

	var choices []struct {
		Message      json.RawMessage `json:"message"`
		FinishReason *string         `json:"finish_reason"`
	}
	if err := decodeField(fields, "choices", &choices); err != nil {
		return err
	}
	if len(choices) == 0 {
		return &MalformedResponseError{Field: "choices", Err: errors.New("no choices returned")}
	}
	if len(choices[0].Message) == 0 || isJSONNull(choices[0].Message) {
		return &MalformedResponseError{Field: "choices[0].message"}
	}

	msg, content, err := decodeMessage(choices[0].Message)
	if err != nil {
		return &MalformedResponseError{Field: "choices[0].message", Err: err}
	}
	resp.Message = msg
	resp.Content = content
	resp.Role = msg.Role
	resp.StopReason = lo.FromPtr(choices[0].FinishReason)

	if raw, ok := fields["usage"]; ok && !isJSONNull(raw) {
		var usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		}
		if err := json.Unmarshal(raw, &usage); err != nil {
			return &MalformedResponseError{Field: "usage", Err: err}
		}
		resp.Usage = &Usage{InputTokens: usage.PromptTokens, OutputTokens: usage.CompletionTokens, Raw: cloneRaw(raw)}
	}
	return nil
}

// decodeMessage yields both views of a message object: the message-level
// form and its content as items.
func decodeMessage(raw json.RawMessage) (*Message, []ContentItem, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, err
	}
	if obj == nil {
		return nil, nil, fmt.Errorf("message is null")
	}
	msg, err := NormalizeMessage(raw)
	if err != nil {
		return nil, nil, err
	}
	content, err := NormalizeContent(obj["content"])
	if err != nil {
		return nil, nil, err
	}
	return msg, content, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
