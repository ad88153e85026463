// Package linker resolves conversations to leads and repairs duplicate
// conversation threads for the same contact.
package linker

import (
	"context"
	"errors"
	"fmt"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/conversations"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/history"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/leads"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/phone"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/ws"
	"go.uber.org/zap"
)

var (
	// ErrNoMatch means no lead in the conversation's unit matched any
	// phone variant.
	ErrNoMatch = errors.New("linker: no matching lead")
	// ErrAmbiguous means several distinct leads matched; auto-linking
	// refuses to guess.
	ErrAmbiguous = errors.New("linker: ambiguous phone match")
)

const (
	ActionConversationLinked   = "conversation_linked"
	ActionConversationUnlinked = "conversation_unlinked"
)

type Service struct {
	convRepo conversations.Repository
	leadRepo leads.Repository
	convs    *conversations.Service
	history  *history.Service
	notifier ws.Notifier
	logger   *zap.Logger
}

func NewService(convRepo conversations.Repository, leadRepo leads.Repository, convs *conversations.Service, hist *history.Service, notifier ws.Notifier, logger *zap.Logger) *Service {
	return &Service{
		convRepo: convRepo,
		leadRepo: leadRepo,
		convs:    convs,
		history:  hist,
		notifier: notifier,
		logger:   logger,
	}
}

// LinkByPhone tries to resolve a conversation's lead by phone, restricted to
// the conversation's unit and tolerant of formatting variants. A non-unique
// match links nothing: no link beats a wrong link.
func (s *Service) LinkByPhone(ctx context.Context, conversationID string) (models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if conv.LeadID != nil {
		return conv, nil
	}

	matches, err := s.leadRepo.FindByPhone(ctx, conv.Unit, phone.Variants(conv.Phone))
	if err != nil {
		return models.Conversation{}, fmt.Errorf("search leads: %w", err)
	}
	switch {
	case len(matches) == 0:
		return conv, ErrNoMatch
	case distinctLeads(matches) > 1:
		s.logger.Warn("ambiguous phone match, skipping auto-link",
			zap.String("conversation_id", conv.ID),
			zap.Int("matches", len(matches)))
		return conv, ErrAmbiguous
	}

	return s.link(ctx, conv, matches[0].ID, nil)
}

// LinkSystem attaches a lead on behalf of the bot; the history entry
// carries no acting user.
func (s *Service) LinkSystem(ctx context.Context, conversationID, leadID string) (models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	return s.link(ctx, conv, leadID, nil)
}

// LinkManually attaches a user-chosen lead to the conversation.
func (s *Service) LinkManually(ctx context.Context, conversationID, leadID string, actor string) (models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if _, err := s.leadRepo.Get(ctx, leadID); err != nil {
		return models.Conversation{}, err
	}
	return s.link(ctx, conv, leadID, &actor)
}

func (s *Service) link(ctx context.Context, conv models.Conversation, leadID string, actor *string) (models.Conversation, error) {
	conv.LeadID = &leadID
	if err := s.convRepo.Update(ctx, conv); err != nil {
		return models.Conversation{}, fmt.Errorf("link conversation: %w", err)
	}
	if err := s.history.Record(ctx, leadID, actor, ActionConversationLinked, "", conv.ID); err != nil {
		return models.Conversation{}, fmt.Errorf("record link: %w", err)
	}
	s.notifier.Publish(ws.EventConversationUpdated, conv)
	return conv, nil
}

// Unlink detaches the conversation from its lead. Message history is
// untouched; only the weak reference is cleared.
func (s *Service) Unlink(ctx context.Context, conversationID string, actor string) (models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if conv.LeadID == nil {
		return conv, nil
	}
	leadID := *conv.LeadID
	conv.LeadID = nil
	if err := s.convRepo.Update(ctx, conv); err != nil {
		return models.Conversation{}, fmt.Errorf("unlink conversation: %w", err)
	}
	if err := s.history.Record(ctx, leadID, &actor, ActionConversationUnlinked, conv.ID, ""); err != nil {
		return models.Conversation{}, fmt.Errorf("record unlink: %w", err)
	}
	s.notifier.Publish(ws.EventConversationUpdated, conv)
	return conv, nil
}

// DuplicateGroup is a set of conversations sharing one canonical phone on
// one instance.
type DuplicateGroup struct {
	InstanceID    string                `json:"instance_id"`
	Phone         string                `json:"phone"`
	Conversations []models.Conversation `json:"conversations"`
}

// DetectDuplicates groups conversations by (instance, canonical phone) and
// returns the groups with more than one member.
func (s *Service) DetectDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	all, err := s.convRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	byKey := map[[2]string][]models.Conversation{}
	var order [][2]string
	for _, c := range all {
		key := [2]string{c.InstanceID, phone.Canonical(c.Phone)}
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], c)
	}

	var groups []DuplicateGroup
	for _, key := range order {
		convs := byKey[key]
		if len(convs) > 1 {
			groups = append(groups, DuplicateGroup{
				InstanceID:    key[0],
				Phone:         key[1],
				Conversations: convs,
			})
		}
	}
	return groups, nil
}

// Merge folds each secondary conversation into the primary: messages are
// reassigned (timestamps preserved), then the secondary record is deleted.
// Each secondary is an all-or-nothing unit: a failed reassignment aborts
// before the secondary is removed, so messages are never orphaned. The
// primary's snapshot is recomputed from the merged message set at the end.
func (s *Service) Merge(ctx context.Context, primaryID string, secondaryIDs []string) error {
	primary, err := s.convRepo.Get(ctx, primaryID)
	if err != nil {
		return err
	}

	for _, secID := range secondaryIDs {
		if secID == primaryID {
			continue
		}
		if _, err := s.convRepo.Get(ctx, secID); err != nil {
			return fmt.Errorf("merge %s: %w", secID, err)
		}
		if err := s.convRepo.ReassignMessages(ctx, secID, primaryID); err != nil {
			return fmt.Errorf("merge %s: reassign messages: %w", secID, err)
		}
		if err := s.convRepo.Delete(ctx, secID); err != nil {
			return fmt.Errorf("merge %s: delete secondary: %w", secID, err)
		}
		s.logger.Info("conversation merged",
			zap.String("primary_id", primaryID),
			zap.String("secondary_id", secID))
	}

	if err := s.convs.RefreshSnapshot(ctx, primaryID); err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}
	s.notifier.Publish(ws.EventConversationMerged, primary)
	return nil
}

func distinctLeads(ms []models.Lead) int {
	ids := map[string]bool{}
	for _, m := range ms {
		ids[m.ID] = true
	}
	return len(ids)
}
