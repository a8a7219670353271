package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/security"
	"taskboard/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	csrfTokens  *security.CSRFTokenStore
	rateLimiter *security.RateLimiter
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService) *Middleware {
	return &Middleware{
		authService: authService,
		csrfTokens:  security.NewCSRFTokenStore(24 * time.Hour),
		rateLimiter: security.NewRateLimiter(10, time.Minute),
	}
}

// RequireAuth is middleware that requires a valid session and puts the
// profile on the request context
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session_id")
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		user, err := m.authService.ValidateSession(cookie.Value)
		if err != nil {
			http.SetCookie(w, security.CreateDeleteCookie(r, "session_id"))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// RequireGuardian requires a valid session with the guardian role
func (m *Middleware) RequireGuardian(next http.HandlerFunc) http.HandlerFunc {
	return m.requireRole(models.RoleGuardian, next)
}

// RequireLearner requires a valid session with the learner role
func (m *Middleware) RequireLearner(next http.HandlerFunc) http.HandlerFunc {
	return m.requireRole(models.RoleLearner, next)
}

func (m *Middleware) requireRole(role models.Role, next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || user.Role != role {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	})
}

// CSRFProtect validates the csrf_token form field against the session's token
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session_id")
		if err != nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		if !m.csrfTokens.Validate(cookie.Value, r.FormValue("csrf_token")) {
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}

		next(w, r)
	}
}

// CSRFToken returns the CSRF token for the request's session, for templates
func (m *Middleware) CSRFToken(r *http.Request) string {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		return ""
	}
	token, err := m.csrfTokens.Token(cookie.Value)
	if err != nil {
		log.Printf("Error generating CSRF token: %v", err)
		return ""
	}
	return token
}

// RateLimit limits request rate per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.rateLimiter.Allow(security.GetClientIP(r)) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// GetUserFromContext retrieves the profile from the request context
func GetUserFromContext(ctx context.Context) *models.UserProfile {
	user, ok := ctx.Value(UserContextKey).(*models.UserProfile)
	if !ok {
		return nil
	}
	return user
}
