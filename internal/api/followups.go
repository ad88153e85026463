package api

import (
	"net/http"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/followup"
	"github.com/gin-gonic/gin"
)

// FollowUpHandler triggers a scheduler pass on demand. The background
// ticker covers normal operation, this exists for ops tooling.
type FollowUpHandler struct {
	svc *followup.Service
}

func NewFollowUpHandler(svc *followup.Service) *FollowUpHandler {
	return &FollowUpHandler{svc: svc}
}

func (h *FollowUpHandler) Run(c *gin.Context) {
	if err := h.svc.RunDue(c.Request.Context(), time.Now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
