package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/auth"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/observability"
	"go.uber.org/zap"
)

const (
	DemoUsername = "admin"
	DemoPassword = "admin123"
	DemoFullName = "Admin User"
)

type AuthService interface {
	Login(ctx context.Context, traceID string, req views.LoginRequest) (views.LoginResponse, error)
	Logout(ctx context.Context, traceID string, claims *auth.Claims) error
	InitDemoUser(ctx context.Context, traceID string) (views.MessageResponse, error)
}

type AuthServiceImpl struct {
	logger          *zap.Logger
	users           repositories.UserRepository
	tokens          *auth.TokenIssuer
	demoUserEnabled bool
}

func NewAuthService(logger *zap.Logger, users repositories.UserRepository, tokens *auth.TokenIssuer, demoUserEnabled bool) AuthService {
	return &AuthServiceImpl{logger: logger, users: users, tokens: tokens, demoUserEnabled: demoUserEnabled}
}

func (a *AuthServiceImpl) Login(ctx context.Context, traceID string, req views.LoginRequest) (views.LoginResponse, error) {
	user, err := a.users.FindByUsername(ctx, req.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		observability.LoginAttempts.WithLabelValues("unknown_user").Inc()
		a.logger.Warn("login_failed", zap.String(pkg.TraceId, traceID), zap.String("reason", "unknown_user"))
		return views.LoginResponse{}, pkg.NewAppError(pkg.ErrInvalidCredentialsCode, "", err)
	}
	if err != nil {
		return views.LoginResponse{}, pkg.HandleSQLError(traceID, a.logger, err)
	}

	if err = auth.VerifyPassword(user.Password, req.Password); err != nil {
		observability.LoginAttempts.WithLabelValues("bad_password").Inc()
		a.logger.Warn("login_failed", zap.String(pkg.TraceId, traceID), zap.String("reason", "bad_password"), zap.String(pkg.Username, user.Username))
		return views.LoginResponse{}, pkg.NewAppError(pkg.ErrInvalidCredentialsCode, "", err)
	}

	session, err := a.tokens.Issue(user.Username, user.FullName)
	if err != nil {
		return views.LoginResponse{}, pkg.NewAppError(pkg.ErrServerCode, "failed to issue session", err)
	}
	observability.LoginAttempts.WithLabelValues("ok").Inc()
	a.logger.Info("login_succeeded", zap.String(pkg.TraceId, traceID), zap.String(pkg.Username, user.Username))
	return views.LoginResponse{
		AccessToken: session.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   session.ExpiresAt.UTC().Truncate(time.Second),
		Username:    user.Username,
		FullName:    user.FullName,
	}, nil
}

func (a *AuthServiceImpl) Logout(ctx context.Context, traceID string, claims *auth.Claims) error {
	if err := a.tokens.Revoke(ctx, claims); err != nil {
		return pkg.NewAppError(pkg.ErrUnavailableCode, "failed to revoke session", err)
	}
	a.logger.Info("logout", zap.String(pkg.TraceId, traceID), zap.String(pkg.Username, claims.Subject))
	return nil
}

// InitDemoUser creates admin/admin123 unless it already exists.
func (a *AuthServiceImpl) InitDemoUser(ctx context.Context, traceID string) (views.MessageResponse, error) {
	if !a.demoUserEnabled {
		return views.MessageResponse{}, pkg.NewAppError(pkg.ErrForbiddenCode, "demo user initialization is disabled", nil)
	}
	if err := EnsureDemoUser(ctx, a.users); err != nil {
		if errors.Is(err, errDemoUserExists) {
			return views.MessageResponse{Message: "Demo user already exists"}, nil
		}
		return views.MessageResponse{}, pkg.HandleSQLError(traceID, a.logger, err)
	}
	a.logger.Info("demo_user_created", zap.String(pkg.TraceId, traceID))
	return views.MessageResponse{Message: "Demo user 'admin' created with password 'admin123'"}, nil
}

var errDemoUserExists = errors.New("demo user exists")

// EnsureDemoUser creates the demo account; errDemoUserExists reports an existing one.
func EnsureDemoUser(ctx context.Context, users repositories.UserRepository) error {
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	created, err := users.CreateIfAbsent(ctx, models.User{
		Username: DemoUsername,
		Password: hash,
		FullName: DemoFullName,
		Theme:    pkg.ThemeDark,
	})
	if err != nil {
		return err
	}
	if !created {
		return errDemoUserExists
	}
	return nil
}
