package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/followup"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/leads"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type LeadHandler struct {
	leads *leads.Service
	db    *gorm.DB
}

func NewLeadHandler(svc *leads.Service, db *gorm.DB) *LeadHandler {
	return &LeadHandler{leads: svc, db: db}
}

func (h *LeadHandler) List(c *gin.Context) {
	out, err := h.leads.List(c.Request.Context(), leads.ListFilter{
		Unit:   c.Query("unit"),
		Status: c.Query("status"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		out = []models.Lead{}
	}
	c.JSON(http.StatusOK, out)
}

// leadFlags are derived from related records, never stored on the lead.
type leadFlags struct {
	VisitScheduled bool `json:"visit_scheduled"`
	FollowUp1Sent  bool `json:"follow_up_1_sent"`
	FollowUp2Sent  bool `json:"follow_up_2_sent"`
}

type leadDetail struct {
	models.Lead
	Flags leadFlags `json:"flags"`
}

func (h *LeadHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	lead, err := h.leads.Get(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var visits int64
	h.db.WithContext(ctx).Model(&models.VisitIntent{}).Where("lead_id = ?", lead.ID).Count(&visits)

	var sched models.FollowUpSchedule
	flags := leadFlags{VisitScheduled: visits > 0}
	if err := h.db.WithContext(ctx).First(&sched, "lead_id = ?", lead.ID).Error; err == nil {
		flags.FollowUp1Sent = sched.Stage1SentAt != nil
		flags.FollowUp2Sent = sched.Stage2SentAt != nil
	}

	c.JSON(http.StatusOK, leadDetail{Lead: lead, Flags: flags})
}

type createLeadRequest struct {
	Name          string `json:"name" binding:"required"`
	Phone         string `json:"phone"`
	Unit          string `json:"unit"`
	Month         string `json:"month"`
	DayPreference string `json:"day_preference"`
	GuestCount    int    `json:"guest_count"`
	Notes         string `json:"notes"`
	UserID        string `json:"user_id" binding:"required"`
}

func (h *LeadHandler) Create(c *gin.Context) {
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lead, err := h.leads.Create(c.Request.Context(), leads.CreateInput{
		Name:          req.Name,
		Phone:         req.Phone,
		Unit:          req.Unit,
		Month:         req.Month,
		DayPreference: req.DayPreference,
		GuestCount:    req.GuestCount,
		Notes:         req.Notes,
	}, &req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

type moveRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Status string `json:"status"` // MoveTo only
}

func (h *LeadHandler) MoveForward(c *gin.Context) {
	h.move(c, h.leads.MoveForward)
}

func (h *LeadHandler) MoveBackward(c *gin.Context) {
	h.move(c, h.leads.MoveBackward)
}

func (h *LeadHandler) move(c *gin.Context, op func(ctx context.Context, id string, actor *string) (models.Lead, error)) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lead, err := op(c.Request.Context(), c.Param("id"), &req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) MoveTo(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lead, err := h.leads.MoveTo(c.Request.Context(), c.Param("id"), req.Status, &req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

type updateLeadRequest struct {
	Name          *string `json:"name"`
	Notes         *string `json:"notes"`
	Month         *string `json:"month"`
	DayPreference *string `json:"day_preference"`
	GuestCount    *int    `json:"guest_count"`
	UserID        string  `json:"user_id" binding:"required"`
}

// Update applies the name, notes and qualification edits present in the
// request, each audited separately.
func (h *LeadHandler) Update(c *gin.Context) {
	var req updateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	lead, err := h.leads.Get(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if req.Name != nil {
		if lead, err = h.leads.UpdateName(ctx, id, *req.Name, &req.UserID); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if req.Notes != nil {
		if lead, err = h.leads.UpdateNotes(ctx, id, *req.Notes, &req.UserID); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if req.Month != nil || req.DayPreference != nil || req.GuestCount != nil {
		q := leads.Qualification{
			Month:         lead.Month,
			DayPreference: lead.DayPreference,
			GuestCount:    lead.GuestCount,
		}
		if req.Month != nil {
			q.Month = *req.Month
		}
		if req.DayPreference != nil {
			q.DayPreference = *req.DayPreference
		}
		if req.GuestCount != nil {
			q.GuestCount = *req.GuestCount
		}
		if lead, err = h.leads.UpdateQualification(ctx, id, q, &req.UserID); err != nil {
			h.respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Delete(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.leads.Delete(c.Request.Context(), c.Param("id"), &req.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *LeadHandler) History(c *gin.Context) {
	entries, err := h.leads.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.LeadHistory{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *LeadHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, leads.ErrNotFound), errors.Is(err, followup.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
	case errors.Is(err, leads.ErrInvalidStatus), errors.Is(err, leads.ErrInvalidTransition), errors.Is(err, leads.ErrInvalidLead):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
