package bot

import (
	"context"
	"errors"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/models"
)

var ErrSessionNotFound = errors.New("bot: session not found")

// Repository is the persistence contract for the qualification engine: the
// per-conversation session arena plus the read-only configuration surfaces
// owned by the settings collaborator.
type Repository interface {
	GetSession(ctx context.Context, conversationID string) (models.BotSession, error)
	SaveSession(ctx context.Context, s models.BotSession) error

	// ActiveQuestions returns enabled steps ordered by position.
	ActiveQuestions(ctx context.Context) ([]models.BotQuestion, error)
	// Settings returns the singleton settings row, or its defaults when
	// none has been saved yet.
	Settings(ctx context.Context) (models.BotSettings, error)
	IsVIP(ctx context.Context, canonicalPhone string) (bool, error)
	MaterialsByUnit(ctx context.Context, unit string) ([]models.Material, error)
	CreateVisitIntent(ctx context.Context, v models.VisitIntent) error
}
