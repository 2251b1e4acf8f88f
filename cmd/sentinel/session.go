package main

import (
	"context"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/core/session"
	"github.com/dmitrymomot/sentinel/integration/auth/oidcauth"
	"github.com/dmitrymomot/sentinel/pkg/localstore"
)

// startSession keeps the service-account session stored in SessionDir
// refreshed against the OIDC issuer. Any process sharing the directory sees
// the same session. It returns nil when OIDC is not configured.
func startSession(ctx context.Context, cfg Config, log *slog.Logger) (*session.Manager, error) {
	if cfg.OIDC.Issuer == "" {
		log.InfoContext(ctx, "OIDC issuer not configured, session manager disabled", logger.Component("session"))
		return nil, nil
	}

	provider, err := oidcauth.New(ctx, cfg.OIDC)
	if err != nil {
		return nil, err
	}
	storage, err := localstore.NewFile(cfg.SessionDir, localstore.WithFileLogger(log))
	if err != nil {
		return nil, err
	}

	mgr := session.NewFromConfig(cfg.Session,
		session.WithStorage(storage),
		session.WithAuthProvider(provider),
		session.WithLogger(log),
	)
	mgr.Initialize(ctx, provider.Refresh)

	stored, ok := mgr.Get()
	if !ok {
		log.InfoContext(ctx, "no stored session, waiting for sign-in", logger.Component("session"))
		return mgr, nil
	}
	provider.SetSession(&oauth2.Token{
		AccessToken:  stored.Token,
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.ExpiresAt,
	}, stored.UserID)

	switch {
	case mgr.NeedsRefresh():
		if !mgr.Refresh(ctx) {
			log.WarnContext(ctx, "stored session could not be refreshed", logger.UserID(stored.UserID))
		}
	case !mgr.ValidateWithProvider(ctx):
		log.WarnContext(ctx, "stored session rejected by the issuer", logger.UserID(stored.UserID))
	default:
		log.InfoContext(ctx, "session restored", logger.UserID(stored.UserID),
			logger.Duration(mgr.TimeUntilExpiry()))
	}
	return mgr, nil
}
