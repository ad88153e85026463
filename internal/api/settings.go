package api

import (
	"net/http"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/phone"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SettingsHandler exposes the configuration surfaces the admin screens
// edit: bot settings, the question script, the VIP list and materials.
type SettingsHandler struct {
	db *gorm.DB
}

func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

func (h *SettingsHandler) GetBotSettings(c *gin.Context) {
	var s models.BotSettings
	if err := h.db.WithContext(c.Request.Context()).FirstOrCreate(&s, models.BotSettings{ID: 1}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) UpdateBotSettings(c *gin.Context) {
	var s models.BotSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ID = 1
	if err := h.db.WithContext(c.Request.Context()).Save(&s).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) ListQuestions(c *gin.Context) {
	var out []models.BotQuestion
	if err := h.db.WithContext(c.Request.Context()).Order("position ASC").Find(&out).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		out = []models.BotQuestion{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *SettingsHandler) SaveQuestion(c *gin.Context) {
	var q models.BotQuestion
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.StepKey == "" || q.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step_key and question are required"})
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Save(&q).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *SettingsHandler) ListVIPs(c *gin.Context) {
	var out []models.VIPNumber
	if err := h.db.WithContext(c.Request.Context()).Order("created_at DESC").Find(&out).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		out = []models.VIPNumber{}
	}
	c.JSON(http.StatusOK, out)
}

type vipRequest struct {
	Phone string `json:"phone" binding:"required"`
	Note  string `json:"note"`
}

func (h *SettingsHandler) AddVIP(c *gin.Context) {
	var req vipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	vip := models.VIPNumber{Phone: phone.Canonical(req.Phone), Note: req.Note}
	if vip.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone"})
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&vip).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, vip)
}

func (h *SettingsHandler) RemoveVIP(c *gin.Context) {
	result := h.db.WithContext(c.Request.Context()).Delete(&models.VIPNumber{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "vip number not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *SettingsHandler) ListMaterials(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Order("unit ASC, position ASC")
	if unit := c.Query("unit"); unit != "" {
		q = q.Where("unit = ?", unit)
	}
	var out []models.Material
	if err := q.Find(&out).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		out = []models.Material{}
	}
	c.JSON(http.StatusOK, out)
}
