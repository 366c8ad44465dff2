package chat

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/thushan/locallm/internal/adapter/guidance"
	"github.com/thushan/locallm/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type MessageType string

// host -> core
const (
	TypeSendMessage MessageType = "sendMessage"
	TypeClearChat   MessageType = "clearChat"
	TypeSelectModel MessageType = "selectModel"

	TypeEnableFeature MessageType = "enableFeature"
)

// core -> host
const (
	TypeResponse    MessageType = "response"
	TypeStreamChunk MessageType = "streamChunk"
	TypeStreamEnd   MessageType = "streamEnd"
	TypeError       MessageType = "error"
	TypeModelList   MessageType = "modelList"

	TypeFeatureState MessageType = "featureState"
)

// HostMessage is one message of the webview protocol, discriminated by Type
type HostMessage struct {
	Guidance  *guidance.Guidance       `json:"guidance,omitempty"`
	Stats     *domain.PerformanceStats `json:"stats,omitempty"`
	Usage     *domain.Usage            `json:"usage,omitempty"`
	Type      MessageType              `json:"type"`
	Text      string                   `json:"text,omitempty"`
	Model     string                   `json:"model,omitempty"`
	Source    string                   `json:"source,omitempty"`
	RequestID string                   `json:"request_id,omitempty"`
	Feature   domain.Feature           `json:"feature,omitempty"`
	State     domain.FeatureState      `json:"state,omitempty"`
	Models    []ModelInfo              `json:"models,omitempty"`
	Degraded  bool                     `json:"degraded,omitempty"`
}

// ParseHostMessage decodes an incoming message and rejects unknown or outbound types
func ParseHostMessage(data []byte) (HostMessage, error) {
	var msg HostMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, domain.NewValidationError(domain.CodeInvalidRequest, "message", "message is not valid JSON: "+err.Error())
	}

	switch msg.Type {
	case TypeSendMessage, TypeClearChat, TypeSelectModel:
		return msg, nil
	case TypeEnableFeature:
		if msg.Feature == "" {
			return msg, domain.NewValidationError(domain.CodeMissingParameter, "feature", "feature is required")
		}
		return msg, nil
	case "":
		return msg, domain.NewValidationError(domain.CodeMissingParameter, "type", "message type is required")
	default:
		return msg, domain.NewValidationError(domain.CodeInvalidRequest, "type", fmt.Sprintf("unsupported message type '%s'", msg.Type))
	}
}

func (m HostMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func errorMessage(g guidance.Guidance) HostMessage {
	return HostMessage{Type: TypeError, Text: g.Message, Guidance: &g}
}
