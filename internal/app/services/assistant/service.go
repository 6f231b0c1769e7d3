// Package assistant is the AI gateway: persona chat, transaction
// categorization and day-plan generation, with a deterministic fallback when
// no completion gateway is configured.
package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/internal/app/domain/user"
	"github.com/lifeos-hq/lifeos/internal/app/metrics"
	"github.com/lifeos-hq/lifeos/internal/app/services/entitlements"
	"github.com/lifeos-hq/lifeos/internal/app/services/journal"
	"github.com/lifeos-hq/lifeos/internal/app/storage"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// ErrGatewayFailure marks replies the completion gateway could not produce.
var ErrGatewayFailure = errors.New("assistant gateway failure")

const (
	maxTitleRunes = 60
	historyWindow = 20
)

// Service exposes the assistant operations. A nil completer means no
// gateway is configured and the rule fallback serves every request.
type Service struct {
	store     storage.AssistantStore
	tasks     storage.TaskStore
	habits    storage.HabitStore
	ent       *entitlements.Service
	completer Completer
	rules     *RuleCompleter
	log       *logger.Logger
}

// New constructs an assistant service.
func New(store storage.AssistantStore, tasks storage.TaskStore, habits storage.HabitStore, ent *entitlements.Service, completer Completer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("assistant")
	}
	return &Service{
		store:     store,
		tasks:     tasks,
		habits:    habits,
		ent:       ent,
		completer: completer,
		rules:     &RuleCompleter{},
		log:       log,
	}
}

// builtinPersonas are seeded at startup and cannot be deleted.
var builtinPersonas = []assistant.Persona{
	{
		Name:         "coach",
		Tagline:      "Keeps you accountable",
		SystemPrompt: "You are a supportive but direct personal coach. Help the user stay accountable to their tasks, habits and goals. Be encouraging, concrete and brief.",
	},
	{
		Name:         "analyst",
		Tagline:      "Reads your numbers",
		SystemPrompt: "You are a personal finance analyst. Explain spending patterns, budgets and savings progress in plain language. Use the Nigerian naira as the base currency unless told otherwise.",
	},
	{
		Name:         "planner",
		Tagline:      "Plans your day",
		SystemPrompt: "You are a pragmatic day planner. Turn the user's tasks and habits into realistic timeboxed plans, and keep suggestions short.",
	},
}

// SeedPersonas inserts the built-in personas that are not stored yet.
func (s *Service) SeedPersonas(ctx context.Context) error {
	for _, p := range builtinPersonas {
		if _, err := s.store.GetPersonaByName(ctx, p.Name); err == nil {
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		p.BuiltIn = true
		if _, err := s.store.CreatePersona(ctx, p); err != nil {
			return fmt.Errorf("seed persona %s: %w", p.Name, err)
		}
		s.log.WithField("persona", p.Name).Info("built-in persona seeded")
	}
	return nil
}

// Chat appends the user's message to a conversation and returns the
// assistant's reply. A missing conversationID starts a new conversation with
// the given persona, defaulting to the coach.
func (s *Service) Chat(ctx context.Context, u user.User, personaID, conversationID, text string) (assistant.Message, error) {
	if err := s.ent.Require(ctx, u, entitlements.FeatureAssistantChat); err != nil {
		metrics.RecordAssistantRequest("chat", "denied")
		return assistant.Message{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return assistant.Message{}, fmt.Errorf("message text is required")
	}

	var conv assistant.Conversation
	var persona assistant.Persona
	var err error
	if conversationID != "" {
		conv, err = s.ownedConversation(ctx, u.ID, conversationID)
		if err != nil {
			return assistant.Message{}, err
		}
		persona, err = s.store.GetPersona(ctx, conv.PersonaID)
		if err != nil {
			return assistant.Message{}, fmt.Errorf("persona %s: %w", conv.PersonaID, err)
		}
	} else {
		if personaID == "" {
			persona, err = s.store.GetPersonaByName(ctx, "coach")
		} else {
			persona, err = s.store.GetPersona(ctx, personaID)
		}
		if err != nil {
			return assistant.Message{}, fmt.Errorf("persona %s: %w", personaID, err)
		}
		conv, err = s.store.CreateConversation(ctx, assistant.Conversation{
			UserID:    u.ID,
			PersonaID: persona.ID,
			Title:     titleFrom(text),
		})
		if err != nil {
			return assistant.Message{}, err
		}
	}

	if _, err := s.store.CreateMessage(ctx, assistant.Message{
		ConversationID: conv.ID,
		UserID:         u.ID,
		Role:           assistant.RoleUser,
		Content:        text,
	}); err != nil {
		return assistant.Message{}, err
	}

	history, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return assistant.Message{}, err
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	window := make([]assistant.ChatMessage, 0, len(history))
	for _, m := range history {
		window = append(window, assistant.ChatMessage{Role: m.Role, Content: m.Content})
	}

	reply, err := s.complete(ctx, persona.SystemPrompt, window)
	if err != nil {
		// The user message stays stored; the caller can retry the turn.
		metrics.RecordAssistantRequest("chat", "error")
		return assistant.Message{}, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	reply = journal.SanitizeContent(strings.TrimSpace(reply))

	msg, err := s.store.CreateMessage(ctx, assistant.Message{
		ConversationID: conv.ID,
		UserID:         u.ID,
		Role:           assistant.RoleAssistant,
		Content:        reply,
	})
	if err != nil {
		return assistant.Message{}, err
	}
	if _, err := s.store.UpdateConversation(ctx, conv); err != nil {
		s.log.WithError(err).WithField("conversation_id", conv.ID).Warn("failed to touch conversation")
	}

	metrics.RecordAssistantRequest("chat", "ok")
	s.log.WithField("conversation_id", conv.ID).
		WithField("persona", persona.Name).
		Debug("chat turn completed")
	return msg, nil
}

// Conversations lists the user's conversations, newest first.
func (s *Service) Conversations(ctx context.Context, u user.User) ([]assistant.Conversation, error) {
	if err := s.ent.Require(ctx, u, entitlements.FeatureAssistantChat); err != nil {
		return nil, err
	}
	return s.store.ListConversations(ctx, u.ID)
}

// Messages lists one conversation's messages in order.
func (s *Service) Messages(ctx context.Context, u user.User, conversationID string) ([]assistant.Message, error) {
	if err := s.ent.Require(ctx, u, entitlements.FeatureAssistantChat); err != nil {
		return nil, err
	}
	if _, err := s.ownedConversation(ctx, u.ID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, u user.User, conversationID string) error {
	if err := s.ent.Require(ctx, u, entitlements.FeatureAssistantChat); err != nil {
		return err
	}
	if _, err := s.ownedConversation(ctx, u.ID, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	s.log.WithField("conversation_id", conversationID).Info("conversation deleted")
	return nil
}

// --- Personas ---

// CreatePersona stores a custom persona. Names are unique.
func (s *Service) CreatePersona(ctx context.Context, name, tagline, systemPrompt string) (assistant.Persona, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return assistant.Persona{}, fmt.Errorf("name is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return assistant.Persona{}, fmt.Errorf("system prompt is required")
	}
	if _, err := s.store.GetPersonaByName(ctx, name); err == nil {
		return assistant.Persona{}, fmt.Errorf("persona %q already exists", name)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return assistant.Persona{}, err
	}

	p, err := s.store.CreatePersona(ctx, assistant.Persona{
		Name:         name,
		Tagline:      strings.TrimSpace(tagline),
		SystemPrompt: strings.TrimSpace(systemPrompt),
	})
	if err != nil {
		return assistant.Persona{}, err
	}

	s.log.WithField("persona", p.Name).Info("persona created")
	return p, nil
}

// UpdatePersona applies the provided fields. Built-ins may be re-prompted
// but keep their flag.
func (s *Service) UpdatePersona(ctx context.Context, id string, name, tagline, systemPrompt *string) (assistant.Persona, error) {
	p, err := s.store.GetPersona(ctx, id)
	if err != nil {
		return assistant.Persona{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return assistant.Persona{}, fmt.Errorf("name cannot be empty")
		}
		if trimmed != p.Name {
			if _, err := s.store.GetPersonaByName(ctx, trimmed); err == nil {
				return assistant.Persona{}, fmt.Errorf("persona %q already exists", trimmed)
			} else if !errors.Is(err, sql.ErrNoRows) {
				return assistant.Persona{}, err
			}
		}
		p.Name = trimmed
	}
	if tagline != nil {
		p.Tagline = strings.TrimSpace(*tagline)
	}
	if systemPrompt != nil {
		if strings.TrimSpace(*systemPrompt) == "" {
			return assistant.Persona{}, fmt.Errorf("system prompt cannot be empty")
		}
		p.SystemPrompt = strings.TrimSpace(*systemPrompt)
	}

	p, err = s.store.UpdatePersona(ctx, p)
	if err != nil {
		return assistant.Persona{}, err
	}

	s.log.WithField("persona", p.Name).Info("persona updated")
	return p, nil
}

// DeletePersona removes a custom persona. Built-ins are protected.
func (s *Service) DeletePersona(ctx context.Context, id string) error {
	p, err := s.store.GetPersona(ctx, id)
	if err != nil {
		return err
	}
	if p.BuiltIn {
		return fmt.Errorf("built-in persona %s cannot be deleted", p.Name)
	}
	if err := s.store.DeletePersona(ctx, id); err != nil {
		return err
	}

	s.log.WithField("persona", p.Name).Info("persona deleted")
	return nil
}

// GetPersona returns one persona.
func (s *Service) GetPersona(ctx context.Context, id string) (assistant.Persona, error) {
	return s.store.GetPersona(ctx, id)
}

// ListPersonas returns every persona.
func (s *Service) ListPersonas(ctx context.Context) ([]assistant.Persona, error) {
	return s.store.ListPersonas(ctx)
}

// complete routes to the configured gateway, or the rule fallback when none
// is set.
func (s *Service) complete(ctx context.Context, system string, messages []assistant.ChatMessage) (string, error) {
	if s.completer != nil {
		return s.completer.Complete(ctx, system, messages)
	}
	return s.rules.Complete(ctx, system, messages)
}

func (s *Service) ownedConversation(ctx context.Context, userID, conversationID string) (assistant.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return assistant.Conversation{}, err
	}
	if conv.UserID != userID {
		return assistant.Conversation{}, fmt.Errorf("conversation %s: %w", conversationID, sql.ErrNoRows)
	}
	return conv, nil
}

// titleFrom derives a conversation title from the opening message.
func titleFrom(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes])
	}
	return text
}
