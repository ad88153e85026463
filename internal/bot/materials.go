package bot

import (
	"context"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
	"go.uber.org/zap"
)

// SendMaterials runs the post-completion material sequence for a unit:
// photos, the presentation video, the promotional PDF matching the guest
// count and, when enabled, the seasonal promo video. Sends are ordered and
// separated by the configured delay so the provider neither rate-limits nor
// reorders them. A failed send stops the sequence; what already went out
// stays out, and the remainder can be sent manually.
func (e *Engine) SendMaterials(ctx context.Context, conv models.Conversation, settings models.BotSettings, leadName string, guests int) {
	instance := e.cfg.InstanceByID(conv.InstanceID)
	if instance == nil {
		e.logger.Error("materials: unknown instance", zap.String("instance_id", conv.InstanceID))
		return
	}

	mats, err := e.repo.MaterialsByUnit(ctx, conv.Unit)
	if err != nil {
		e.logger.Error("materials: load catalog", zap.Error(err))
		return
	}

	delay := time.Duration(settings.SendDelaySeconds) * time.Second
	vars := map[string]string{"unidade": conv.Unit, "nome": leadName}
	sent := 0

	step := func(caption string, deliver func() error) bool {
		if sent > 0 {
			e.sleep(delay)
		}
		if caption != "" {
			if err := e.send(ctx, conv, Render(caption, vars)); err != nil {
				e.logger.Error("materials: caption send failed", zap.Error(err))
				return false
			}
			e.sleep(delay)
		}
		if err := deliver(); err != nil {
			e.logger.Error("materials: media send failed", zap.Error(err))
			return false
		}
		sent++
		return true
	}

	for _, m := range byKind(mats, models.MaterialPhoto) {
		m := m
		caption := ""
		if sent == 0 {
			// Only the first photo carries the configured caption.
			caption = settings.PhotoCaption
		}
		if !step(caption, func() error {
			return e.sender.SendImage(ctx, *instance, conv.Phone, m.URL, "")
		}) {
			return
		}
	}

	if video := first(byKind(mats, models.MaterialVideo)); video != nil {
		if !step(settings.VideoCaption, func() error {
			return e.sender.SendVideo(ctx, *instance, conv.Phone, video.URL, "")
		}) {
			return
		}
	}

	if pdf := matchPDF(byKind(mats, models.MaterialPDF), guests); pdf != nil {
		if !step(settings.PdfCaption, func() error {
			return e.sender.SendDocument(ctx, *instance, conv.Phone, pdf.URL, pdf.Filename, "")
		}) {
			return
		}
	}

	if settings.SendPromoVideo {
		if promo := firstSeasonal(byKind(mats, models.MaterialPromo)); promo != nil {
			if !step(settings.PromoCaption, func() error {
				return e.sender.SendVideo(ctx, *instance, conv.Phone, promo.URL, "")
			}) {
				return
			}
		}
	}

	e.logger.Info("materials sequence finished",
		zap.String("conversation_id", conv.ID),
		zap.Int("sent", sent))
}

func byKind(mats []models.Material, kind string) []models.Material {
	var out []models.Material
	for _, m := range mats {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func first(mats []models.Material) *models.Material {
	if len(mats) == 0 {
		return nil
	}
	return &mats[0]
}

func firstSeasonal(mats []models.Material) *models.Material {
	for i := range mats {
		if mats[i].Seasonal {
			return &mats[i]
		}
	}
	return nil
}

// matchPDF picks the promotional PDF whose guest band covers the count; a
// zero MaxGuests band is open-ended.
func matchPDF(pdfs []models.Material, guests int) *models.Material {
	for i := range pdfs {
		if guests >= pdfs[i].MinGuests && (pdfs[i].MaxGuests == 0 || guests <= pdfs[i].MaxGuests) {
			return &pdfs[i]
		}
	}
	return first(pdfs)
}
