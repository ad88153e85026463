// Package webhook receives gateway events: inbound/outbound messages and
// delivery-status updates. The gateway delivers at least once, so message
// intake is idempotent on the external message id.
package webhook

import (
	"errors"
	"net/http"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/bot"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/config"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/conversations"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/linker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Event is the inbound contract from the messaging gateway.
type Event struct {
	InstanceID        string `json:"instance_id" binding:"required"`
	ContactPhone      string `json:"contact_phone"`
	ContactName       string `json:"contact_name"`
	Direction         string `json:"direction"` // in or out
	Type              string `json:"type"`      // text, image, audio, document
	Content           string `json:"content"`
	MediaURL          string `json:"media_url"`
	ExternalMessageID string `json:"external_message_id"`
	Status            string `json:"status"`
	Timestamp         int64  `json:"timestamp"` // unix seconds; 0 = now
}

type Handler struct {
	cfg    *config.Config
	convs  *conversations.Service
	linker *linker.Service
	engine *bot.Engine
	logger *zap.Logger
}

func NewHandler(cfg *config.Config, convs *conversations.Service, link *linker.Service, engine *bot.Engine, logger *zap.Logger) *Handler {
	return &Handler{cfg: cfg, convs: convs, linker: link, engine: engine, logger: logger}
}

// HandleEvent is the single webhook entry point. It always answers 200 for
// events it chooses to ignore, so the gateway stops retrying them.
func (h *Handler) HandleEvent(c *gin.Context) {
	var ev Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.logger.Warn("malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A pure status update carries no body at all. Media messages also have
	// empty Content, so MediaURL must be empty too before this is a status.
	if ev.Status != "" && ev.ExternalMessageID != "" && ev.Content == "" && ev.MediaURL == "" {
		h.handleStatus(c, ev)
		return
	}
	h.handleMessage(c, ev)
}

func (h *Handler) handleStatus(c *gin.Context, ev Event) {
	err := h.convs.ApplyStatus(c.Request.Context(), ev.ExternalMessageID, ev.Status)
	if err != nil {
		if errors.Is(err, conversations.ErrNotFound) {
			// Status for a message we never stored; nothing to update.
			c.Status(http.StatusOK)
			return
		}
		h.logger.Error("apply delivery status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status update failed"})
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) handleMessage(c *gin.Context, ev Event) {
	ctx := c.Request.Context()

	instance := h.cfg.InstanceByID(ev.InstanceID)
	if instance == nil {
		h.logger.Warn("event for unknown instance", zap.String("instance_id", ev.InstanceID))
		c.Status(http.StatusOK)
		return
	}

	conv, err := h.convs.Ensure(ctx, ev.InstanceID, ev.ContactPhone, ev.ContactName, instance.Unit)
	if err != nil {
		h.logger.Error("ensure conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation intake failed"})
		return
	}

	// Try to attach a matching lead on first sight. No match and ambiguous
	// match are both fine; the conversation just stays unlinked.
	if conv.LeadID == nil {
		linked, err := h.linker.LinkByPhone(ctx, conv.ID)
		switch {
		case err == nil:
			conv = linked
		case errors.Is(err, linker.ErrNoMatch), errors.Is(err, linker.ErrAmbiguous):
		default:
			h.logger.Error("auto-link", zap.Error(err))
		}
	}

	var externalID *string
	if ev.ExternalMessageID != "" {
		externalID = &ev.ExternalMessageID
	}
	var ts time.Time
	if ev.Timestamp > 0 {
		ts = time.Unix(ev.Timestamp, 0).UTC()
	}

	msg, err := h.convs.Record(ctx, conversations.RecordInput{
		ConversationID: conv.ID,
		ExternalID:     externalID,
		FromMe:         ev.Direction == "out",
		Type:           ev.Type,
		Content:        ev.Content,
		MediaURL:       ev.MediaURL,
		Timestamp:      ts,
	})
	if err != nil {
		h.logger.Error("record message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message intake failed"})
		return
	}

	// The qualification script only consumes inbound text.
	if ev.Direction != "out" && msg.Type == "text" {
		if err := h.engine.HandleInbound(ctx, conv, ev.Content); err != nil {
			// Bot failures never fail the intake: the message is stored and
			// the session holds its position for the next inbound.
			h.logger.Error("bot processing", zap.Error(err),
				zap.String("conversation_id", conv.ID))
		}
	}

	c.Status(http.StatusOK)
}
