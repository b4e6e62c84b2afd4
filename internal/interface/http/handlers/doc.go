// Package handlers contains the reusable pieces of the REST transport: the
// response envelope, gin middleware, bearer token authentication and health
// checks.
//
// # Authentication
//
// Every route under /api/v1 requires an HS256 bearer token. The subject claim
// is the actor id and the role claim one of admin, secretary, manager or
// student:
//
//	tokens := handlers.NewTokenVerifier(secret, "academic-records")
//	api := engine.Group("/api/v1", handlers.Authenticate(tokens))
//
// Handlers read the caller with ActorFrom; the client IP is taken from gin's
// ClientIP so the configured trusted proxies apply.
//
// # Health Checks
//
// The HealthChecker interface runs named checks in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewPingCheck(conn))
//	checker.AddCheck("cache", handlers.NewPingCheck(cache))
//
// # Responses
//
// Every JSON body is wrapped in JSONResponse. Errors carry a stable code, a
// message and, for batch rejections, the 1-based row that failed.
package handlers
