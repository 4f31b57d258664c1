package services

import (
	"context"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"go.uber.org/zap"
)

// SettingsService manages per-user display preferences.
type SettingsService interface {
	Get(ctx context.Context, traceID, username string) (views.Settings, error)
	Update(ctx context.Context, traceID, username string, settings views.Settings) (views.Settings, error)
}

type SettingsServiceImpl struct {
	logger *zap.Logger
	users  repositories.UserRepository
}

func NewSettingsService(logger *zap.Logger, users repositories.UserRepository) SettingsService {
	return &SettingsServiceImpl{logger: logger, users: users}
}

func (s *SettingsServiceImpl) Get(ctx context.Context, traceID, username string) (views.Settings, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return views.Settings{}, pkg.HandleSQLError(traceID, s.logger, err)
	}
	theme := user.Theme
	if theme == "" {
		theme = pkg.ThemeDark
	}
	return views.Settings{Theme: theme}, nil
}

func (s *SettingsServiceImpl) Update(ctx context.Context, traceID, username string, settings views.Settings) (views.Settings, error) {
	if err := s.users.UpdateTheme(ctx, username, settings.Theme); err != nil {
		return views.Settings{}, pkg.HandleSQLError(traceID, s.logger, err)
	}
	s.logger.Info("theme_updated", zap.String(pkg.TraceId, traceID), zap.String(pkg.Username, username), zap.String("theme", string(settings.Theme)))
	return settings, nil
}
