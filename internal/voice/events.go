package voice

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event is a typed event decoded from a gateway frame.
type Event interface {
	eventType() string
}

// CallStartEvent signals the gateway has connected the call.
type CallStartEvent struct {
	CallID string
}

func (e CallStartEvent) eventType() string { return "call-start" }

// CallEndEvent signals the call is over. Reason is gateway-defined
// (for example "hangup" or "assistant-ended-call").
type CallEndEvent struct {
	Reason string
}

func (e CallEndEvent) eventType() string { return "call-end" }

// SpeechStartEvent signals the assistant started speaking.
type SpeechStartEvent struct{}

func (e SpeechStartEvent) eventType() string { return "speech-start" }

// SpeechEndEvent signals the assistant stopped speaking.
type SpeechEndEvent struct{}

func (e SpeechEndEvent) eventType() string { return "speech-end" }

// Message is the transcript payload carried by message frames. Only
// transcript messages with TranscriptType "final" are committed lines;
// "partial" messages are in-flight recognition updates.
type Message struct {
	Type           string `json:"type"`
	Role           string `json:"role"`
	TranscriptType string `json:"transcriptType"`
	Transcript     string `json:"transcript"`
}

// TranscriptFinal reports whether this is a committed transcript line.
func (m Message) TranscriptFinal() bool {
	return m.Type == "transcript" && m.TranscriptType == "final"
}

type MessageEvent struct {
	Message Message
}

func (e MessageEvent) eventType() string { return "message" }

type ErrorEvent struct {
	Message string
}

func (e ErrorEvent) eventType() string { return "error" }

// UnknownEvent carries frames this client does not understand, so new
// gateway frame types do not kill the session.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) eventType() string { return e.Type }

// CallConfig selects what the gateway should run: an assistant for
// interview mode or a workflow for generation mode.
type CallConfig struct {
	AssistantID string            `json:"assistantId,omitempty"`
	WorkflowID  string            `json:"workflowId,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// wire frames

type clientStart struct {
	Type string     `json:"type"`
	Call CallConfig `json:"call"`
}

type clientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

type serverStartAck struct {
	Type   string `json:"type"`
	CallID string `json:"callId"`
}

type serverCallStart struct {
	Type   string `json:"type"`
	CallID string `json:"callId"`
}

type serverCallEnd struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type serverMessage struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

type serverError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func decodeFrame(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode frame envelope: %w", err)
	}

	switch envelope.Type {
	case "":
		return nil, errors.New("frame missing type")
	case "call-start":
		var f serverCallStart
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode call-start: %w", err)
		}
		return CallStartEvent{CallID: f.CallID}, nil
	case "call-end":
		var f serverCallEnd
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode call-end: %w", err)
		}
		return CallEndEvent{Reason: f.Reason}, nil
	case "speech-start":
		return SpeechStartEvent{}, nil
	case "speech-end":
		return SpeechEndEvent{}, nil
	case "message":
		var f serverMessage
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return MessageEvent{Message: f.Message}, nil
	case "error":
		var f serverError
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
		return ErrorEvent{Message: f.Message}, nil
	case "start-ack":
		// consumed during Start; ignore if the gateway repeats it
		return nil, nil
	default:
		return UnknownEvent{Type: envelope.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
