// Package auth provides registration, login and request authentication.
//
// Service holds the credential rules and is shared by every client. Session
// is the login state machine of a single interactive client (the shell): it
// is anonymous until Register or Login succeeds and publishes every
// transition through Watch.
//
// HTTP clients authenticate in one of two ways:
//   - a cookie session stored in SQLite through scs (browsers)
//   - an HS256 bearer token returned by /api/auth/login (API clients)
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex>     # CSRF key, auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h     # Cookie session duration
//	AUTH_TOKEN_SECRET=<hex>       # Bearer token key, auto-generated if empty
//	AUTH_TOKEN_EXPIRY=720h        # Bearer token lifetime
//	AUTH_BCRYPT_COST=12           # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true      # HTTPS-only cookies
//
// # Usage
//
//	authService := auth.NewService(users.NewRepository(db), cfg.Auth)
//	mw := auth.NewMiddleware(authService, sessionManager, tokens)
//	router.Use(mw.Handler())
//	api := router.Group("/api", mw.RequireAuth())
//
// Extract the user in handlers:
//
//	userID := auth.GetUserID(c)
package auth
