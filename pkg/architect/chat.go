package architect

import (
	"context"
	"strings"

	"github.com/cexll/promptarch/pkg/jsonx"
	"github.com/cexll/promptarch/pkg/model"
	"github.com/cexll/promptarch/pkg/prompt"
	"github.com/cexll/promptarch/pkg/selection"
)

// historyWindow bounds how many trailing turns travel to the conductor.
const historyWindow = 10

// Conductor reply kinds.
const (
	ReplyMessage         = "MESSAGE"
	ReplyInterpretations = "INTERPRETATIONS"
	ReplyTrigger         = "TRIGGER_SELECTION"
)

// ChatInput is one user turn in the clarification path.
type ChatInput struct {
	SessionID string
	ClientID  string
	Message   string
}

// ChatOption is one interpretation the conductor offers.
type ChatOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// triggerPayload is the conductor's refined selection request.
type triggerPayload struct {
	UserRequest  string                `json:"userRequest"`
	Constraints  selection.Constraints `json:"constraints"`
	Capabilities []string              `json:"required_capabilities"`
}

type conductorReply struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Options []ChatOption    `json:"options,omitempty"`
	Payload *triggerPayload `json:"payload,omitempty"`
}

// ChatOutcome is the conductor's classified reply. Selection is non-nil
// only for a trigger that completed successfully.
type ChatOutcome struct {
	SessionID string
	Type      string
	Content   string
	Options   []ChatOption
	Selection *SelectOutcome
}

// Chat advances the multi-turn clarification conversation. Only a
// TRIGGER_SELECTION reply moves the session out of INPUT; the trigger's
// payload is validated exactly like a direct selection request.
func (o *Orchestrator) Chat(ctx context.Context, in ChatInput) (*ChatOutcome, error) {
	ctx, span := o.tracer.Start(ctx, "architect.chat")
	defer span.End()

	if !o.gate.Admit(in.ClientID) {
		return nil, ErrThrottled
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, invalidInputf("message", "missing or empty")
	}
	session, err := o.sessionFor(in.SessionID)
	if err != nil {
		return nil, err
	}

	var window []Turn
	if err := o.sessions.Update(session.ID, func(s *Session) {
		s.History = append(s.History, Turn{Role: "user", Content: message})
		window = trailingTurns(s.History, historyWindow)
	}); err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(window))
	for _, turn := range window {
		messages = append(messages, model.Message{Role: turn.Role, Content: turn.Content})
	}

	resp, err := o.generator.Generate(ctx, model.StageChat, model.Request{
		System:   prompt.Conductor,
		Messages: messages,
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}

	var reply conductorReply
	if err := jsonx.Decode(resp.Content, &reply); err != nil {
		return nil, err
	}

	outcome := &ChatOutcome{SessionID: session.ID, Type: reply.Type, Content: reply.Content}
	switch reply.Type {
	case ReplyMessage:
		if reply.Content == "" {
			return nil, jsonx.Schemaf("content", "missing or empty for %s reply", ReplyMessage)
		}
	case ReplyInterpretations:
		if len(reply.Options) == 0 {
			return nil, jsonx.Schemaf("options", "missing or empty for %s reply", ReplyInterpretations)
		}
		outcome.Options = reply.Options
	case ReplyTrigger:
		if reply.Payload == nil {
			return nil, jsonx.Schemaf("payload", "missing for %s reply", ReplyTrigger)
		}
		request, caps, err := validateSelectPayload(reply.Payload.UserRequest, reply.Payload.Capabilities)
		if err != nil {
			return nil, err
		}
		o.recordAssistantTurn(session.ID, reply.Content)
		selected, err := o.runSelection(ctx, session.ID, request, reply.Payload.Constraints, caps)
		if err != nil {
			return nil, err
		}
		outcome.Selection = selected
		return outcome, nil
	default:
		return nil, jsonx.Schemaf("type", "unknown conductor reply %q", reply.Type)
	}

	o.recordAssistantTurn(session.ID, reply.Content)
	return outcome, nil
}

func (o *Orchestrator) recordAssistantTurn(sessionID, content string) {
	if content == "" {
		return
	}
	_ = o.sessions.Update(sessionID, func(s *Session) {
		s.History = append(s.History, Turn{Role: "assistant", Content: content})
	})
}

func trailingTurns(history []Turn, n int) []Turn {
	if len(history) <= n {
		return append([]Turn(nil), history...)
	}
	return append([]Turn(nil), history[len(history)-n:]...)
}
