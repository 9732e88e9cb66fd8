// Package chat stores messages exchanged between desktop agents and the
// dashboard. A conversation is keyed by conversation_id, which defaults to
// the sending device.
package chat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Service struct {
	db    *gorm.DB
	clock clock.Clock
	log   *zap.Logger
}

func NewService(db *gorm.DB, c clock.Clock, log *zap.Logger) *Service {
	if c == nil {
		c = clock.Real()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, clock: c, log: log}
}

type SendRequest struct {
	DeviceID       string
	Sender         string
	Message        string
	IsFromDesktop  bool
	RecipientID    string
	ConversationID string
	Timestamp      time.Time
}

func (s *Service) Send(ctx context.Context, req SendRequest) (*models.ChatMessage, error) {
	if err := core.Required(
		core.Field{Name: "device_id", Value: req.DeviceID},
		core.Field{Name: "sender", Value: req.Sender},
		core.Field{Name: "message", Value: req.Message},
	); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ts := req.Timestamp
	if ts.IsZero() {
		ts = now
	}
	conversation := req.ConversationID
	if conversation == "" {
		conversation = req.DeviceID
	}

	msg := &models.ChatMessage{
		DeviceID:       req.DeviceID,
		Sender:         req.Sender,
		Message:        req.Message,
		IsFromDesktop:  req.IsFromDesktop,
		RecipientID:    req.RecipientID,
		ConversationID: conversation,
		Timestamp:      ts.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to send chat message: %w", err)
	}

	s.log.Debug("Chat message saved", zap.Uint("id", msg.ID), zap.String("sender", msg.Sender))
	return msg, nil
}

// Messages pages backwards from the newest message involving the device and
// returns the page in chronological order.
func (s *Service) Messages(ctx context.Context, deviceID, conversationID string, limit, offset int) ([]models.ChatMessage, error) {
	if err := core.Required(core.Field{Name: "device_id", Value: deviceID}); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	q := s.involving(ctx, deviceID)
	if conversationID != "" {
		q = q.Where("conversation_id = ?", conversationID)
	}

	msgs := []models.ChatMessage{}
	err := q.Order("timestamp DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get chat messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	LastMessage    string    `json:"last_message"`
	LastSender     string    `json:"last_sender"`
	LastTimestamp  time.Time `json:"last_timestamp"`
	MessageCount   int       `json:"message_count"`
	UnreadCount    int       `json:"unread_count"`
}

// Conversations summarizes every conversation the device takes part in,
// most recently active first.
func (s *Service) Conversations(ctx context.Context, deviceID string) ([]Conversation, error) {
	if err := core.Required(core.Field{Name: "device_id", Value: deviceID}); err != nil {
		return nil, err
	}

	var msgs []models.ChatMessage
	err := s.involving(ctx, deviceID).Order("timestamp DESC").Order("id DESC").Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get chat conversations: %w", err)
	}

	byID := make(map[string]*Conversation)
	var order []string
	for _, m := range msgs {
		c, ok := byID[m.ConversationID]
		if !ok {
			c = &Conversation{
				ConversationID: m.ConversationID,
				LastMessage:    m.Message,
				LastSender:     m.Sender,
				LastTimestamp:  m.Timestamp,
			}
			byID[m.ConversationID] = c
			order = append(order, m.ConversationID)
		}
		c.MessageCount++
		if !m.Read {
			c.UnreadCount++
		}
	}

	out := make([]Conversation, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastTimestamp.After(out[j].LastTimestamp) })
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, core.Invalid("message_ids required")
	}

	res := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"is_read": true, "updated_at": s.clock.Now()})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return core.Invalid("message_id required")
	}

	res := s.db.WithContext(ctx).Delete(&models.ChatMessage{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete chat message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("message")
	}
	return nil
}

func (s *Service) involving(ctx context.Context, deviceID string) *gorm.DB {
	return s.db.WithContext(ctx).Where("device_id = ? OR recipient_id = ?", deviceID, deviceID)
}
