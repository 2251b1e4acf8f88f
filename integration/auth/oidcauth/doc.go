// Package oidcauth plugs an OpenID Connect issuer into the session manager.
//
// Provider implements session.AuthProvider. After the login flow the caller
// hands the token response to SetToken, which verifies the id_token and
// records the token set. Restore then adopts it, Refresh exchanges refresh
// tokens at the issuer's token endpoint and Validate checks an access token
// against the userinfo endpoint.
//
//	provider, err := oidcauth.New(ctx, cfg.OIDC)
//	if err != nil {
//		return err
//	}
//	mgr := session.New(session.WithAuthProvider(provider))
//	mgr.Initialize(ctx, provider.Refresh)
package oidcauth
