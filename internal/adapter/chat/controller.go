package chat

import (
	"context"
	"strings"

	"github.com/thushan/locallm/internal/adapter/client"
	"github.com/thushan/locallm/internal/adapter/degradation"
	"github.com/thushan/locallm/internal/adapter/guidance"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
)

// Backend is the part of the client a conversation needs
type Backend interface {
	domain.ModelLister
	ChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error)
	StreamChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest, onChunk func(*domain.ChatCompletionChunk) error) (*client.StreamResult, error)
}

// Reply is a finished assistant answer
type Reply struct {
	Usage        *domain.Usage
	Stats        *domain.PerformanceStats
	Content      string
	Model        string
	FinishReason string
	RequestID    string
	Source       degradation.Source
	Degraded     bool
}

// Controller drives a Session against the server through the degradation service
type Controller struct {
	backend     Backend
	session     *Session
	degradation *degradation.Service
	errors      *guidance.Handler
	logger      *logger.StyledLogger
}

func NewController(backend Backend, session *Session, svc *degradation.Service, errs *guidance.Handler, log *logger.StyledLogger) *Controller {
	return &Controller{
		backend:     backend,
		session:     session,
		degradation: svc,
		errors:      errs,
		logger:      log,
	}
}

func (c *Controller) Session() *Session {
	return c.session
}

// EnsureModel resolves the session model when none is set yet
func (c *Controller) EnsureModel(ctx context.Context) (string, error) {
	if model := c.session.Model(); model != "" {
		return model, nil
	}
	model, err := SelectModel(ctx, c.backend, "")
	if err != nil {
		return "", err
	}
	c.session.SetModel(model)
	c.logger.InfoWithModel("Selected model", model)
	return model, nil
}

// Send asks the model about prompt. Streamed text is handed to onDelta as it
// arrives, a degraded reply from the cache or a simplified request is not streamed.
// The exchange is added to the history only when an answer came back.
func (c *Controller) Send(ctx context.Context, prompt string, onDelta func(string)) (*Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.NewValidationError(domain.CodeMissingParameter, "message", "message is empty")
	}
	if _, err := c.EnsureModel(ctx); err != nil {
		c.degradation.RecordFailure(domain.FeatureModels, err)
		return nil, err
	}

	req := c.session.Request(prompt)
	op := degradation.Operation[*Reply]{
		Key: req.Model + "\x00" + prompt,
		Run: func(ctx context.Context) (*Reply, error) {
			if req.Stream {
				return c.stream(ctx, req, onDelta)
			}
			return c.complete(ctx, req)
		},
		Simplified: func(ctx context.Context) (*Reply, error) {
			return c.complete(ctx, c.session.SimplifiedRequest(prompt))
		},
	}

	res, err := degradation.Execute(ctx, c.degradation, domain.FeatureChat, op)
	if err != nil {
		return nil, err
	}

	reply := *res.Value
	reply.Source = res.Source
	reply.Degraded = res.Degraded
	c.session.Commit(prompt, reply.Content)
	return &reply, nil
}

func (c *Controller) complete(ctx context.Context, req *domain.ChatCompletionRequest) (*Reply, error) {
	resp, err := c.backend.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	reply := &Reply{
		Content: resp.Content(),
		Model:   resp.Model,
		Usage:   resp.Usage,
		Stats:   resp.Stats,
	}
	if len(resp.Choices) > 0 {
		reply.FinishReason = resp.Choices[0].FinishReason
	}
	return reply, nil
}

func (c *Controller) stream(ctx context.Context, req *domain.ChatCompletionRequest, onDelta func(string)) (*Reply, error) {
	result, err := c.backend.StreamChatCompletion(ctx, req, func(chunk *domain.ChatCompletionChunk) error {
		if text := chunk.Text(); text != "" && onDelta != nil {
			onDelta(text)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Reply{
		Content:      result.Content,
		Model:        result.Model,
		FinishReason: result.FinishReason,
		RequestID:    result.RequestID,
		Usage:        result.Usage,
		Stats:        result.Stats,
	}, nil
}

// Models lists the server's models, falling back per the models strategy
func (c *Controller) Models(ctx context.Context) ([]*domain.Model, degradation.Result[[]*domain.Model], error) {
	res, err := degradation.Execute(ctx, c.degradation, domain.FeatureModels, degradation.Operation[[]*domain.Model]{
		Key: "list",
		Run: c.backend.ListModels,
	})
	return res.Value, res, err
}

// Handle processes one host message and emits the replies
func (c *Controller) Handle(ctx context.Context, msg HostMessage, emit func(HostMessage)) {
	switch msg.Type {
	case TypeClearChat:
		c.session.Clear()
		c.logger.Debug("Conversation cleared", "session", c.session.ID())

	case TypeSelectModel:
		c.session.SetModel(msg.Model)
		c.logger.InfoWithModel("Model selected", msg.Model)
		c.emitModels(ctx, emit)

	case TypeSendMessage:
		streamed := false
		reply, err := c.Send(ctx, msg.Text, func(delta string) {
			streamed = true
			emit(HostMessage{Type: TypeStreamChunk, Text: delta})
		})
		if err != nil {
			emit(errorMessage(c.errors.Handle(domain.FeatureChat, err)))
			return
		}

		out := HostMessage{
			Text:      reply.Content,
			Model:     reply.Model,
			RequestID: reply.RequestID,
			Usage:     reply.Usage,
			Stats:     reply.Stats,
			Source:    string(reply.Source),
			Degraded:  reply.Degraded,
			Type:      TypeResponse,
		}
		if streamed && reply.Source == degradation.SourceLive {
			out.Type = TypeStreamEnd
		}
		emit(out)

	case TypeEnableFeature:
		st, _, err := c.EnableFeature(string(msg.Feature))
		if err != nil {
			emit(errorMessage(c.errors.Handle("", err)))
			return
		}
		emit(HostMessage{Type: TypeFeatureState, Feature: st.Feature, State: st.State})

	default:
		err := domain.NewValidationError(domain.CodeInvalidRequest, "type", "unsupported message type '"+string(msg.Type)+"'")
		emit(errorMessage(c.errors.Handle("", err)))
	}
}

func (c *Controller) emitModels(ctx context.Context, emit func(HostMessage)) {
	models, _, err := c.Models(ctx)
	if err != nil {
		emit(errorMessage(c.errors.Handle(domain.FeatureModels, err)))
		return
	}
	emit(HostMessage{Type: TypeModelList, Model: c.session.Model(), Models: ModelInfos(models)})
}

// ModelList emits the current model list, used when a host connects
func (c *Controller) ModelList(ctx context.Context, emit func(HostMessage)) {
	c.emitModels(ctx, emit)
}

// EnableFeature lifts a disabled feature back into service. changed is false
// when the feature wasn't disabled, st is its status either way.
func (c *Controller) EnableFeature(name string) (st domain.FeatureStatus, changed bool, err error) {
	feature, err := domain.ParseFeature(name)
	if err != nil {
		return st, false, domain.NewValidationError(domain.CodeInvalidRequest, "feature", err.Error())
	}

	changed = c.degradation.Enable(feature)
	if changed {
		c.logger.Info("Feature re-enabled", "feature", feature)
	}
	st, _ = c.degradation.Status(feature)
	return st, changed, nil
}
