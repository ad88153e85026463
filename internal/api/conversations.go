package api

import (
	"errors"
	"net/http"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/conversations"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/linker"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	convs  *conversations.Service
	linker *linker.Service
}

func NewConversationHandler(convs *conversations.Service, link *linker.Service) *ConversationHandler {
	return &ConversationHandler{convs: convs, linker: link}
}

func (h *ConversationHandler) List(c *gin.Context) {
	out, err := h.convs.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		out = []models.Conversation{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	out, err := h.convs.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		out = []models.Message{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conv, err := h.convs.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) ToggleFavorite(c *gin.Context) {
	conv, err := h.convs.ToggleFavorite(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type botFlagRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *ConversationHandler) SetBotFlag(c *gin.Context) {
	var req botFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.convs.SetBotEnabled(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type linkRequest struct {
	LeadID string `json:"lead_id" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
}

func (h *ConversationHandler) Link(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.linker.LinkManually(c.Request.Context(), c.Param("id"), req.LeadID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type unlinkRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *ConversationHandler) Unlink(c *gin.Context) {
	var req unlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := h.linker.Unlink(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) Duplicates(c *gin.Context) {
	groups, err := h.linker.DetectDuplicates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if groups == nil {
		groups = []linker.DuplicateGroup{}
	}
	c.JSON(http.StatusOK, groups)
}

type mergeRequest struct {
	PrimaryID    string   `json:"primary_id" binding:"required"`
	SecondaryIDs []string `json:"secondary_ids" binding:"required"`
}

func (h *ConversationHandler) Merge(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.linker.Merge(c.Request.Context(), req.PrimaryID, req.SecondaryIDs); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "merged"})
}

func (h *ConversationHandler) respondError(c *gin.Context, err error) {
	if errors.Is(err, conversations.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
