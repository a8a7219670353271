package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"

	"taskboard/internal/models"
	"taskboard/internal/security"
	"taskboard/internal/service"
	"taskboard/internal/validation"
)

// AuthHandler handles authentication pages and local sign-in
type AuthHandler struct {
	authService  *service.AuthService
	emailService *service.EmailService
	templates    *template.Template
	providers    map[string]*OAuthProvider
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, emailService *service.EmailService, templates *template.Template, providers map[string]*OAuthProvider) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		emailService: emailService,
		templates:    templates,
		providers:    providers,
	}
}

type authPageData struct {
	Error     string
	Email     string
	Name      string
	Providers []string
}

func (h *AuthHandler) providerNames() []string {
	var names []string
	for name := range h.providers {
		names = append(names, name)
	}
	return names
}

// roleHome returns the landing page for a profile's role
func roleHome(role models.Role) string {
	if role == models.RoleLearner {
		return "/learner/dashboard"
	}
	return "/guardian/dashboard"
}

// Home redirects signed-in users to their dashboard and everyone else to
// the login page
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if cookie, err := r.Cookie("session_id"); err == nil {
		if user, err := h.authService.ValidateSession(cookie.Value); err == nil {
			http.Redirect(w, r, roleHome(user.Role), http.StatusSeeOther)
			return
		}
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.renderAuthPage(w, "login.tmpl", authPageData{Providers: h.providerNames()})
}

// Login handles local email/password sign-in
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid form data", "", err)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	session, user, err := h.authService.Login(email, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.renderAuthPage(w, "login.tmpl", authPageData{
				Error:     "Invalid email or password",
				Email:     email,
				Providers: h.providerNames(),
			})
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Sign-in failed", "Login error", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, "session_id", session.ID, session.ExpiresAt))
	http.Redirect(w, r, roleHome(user.Role), http.StatusSeeOther)
}

// ShowRegister renders the registration page
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.renderAuthPage(w, "register.tmpl", authPageData{Providers: h.providerNames()})
}

// Register handles local account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid form data", "", err)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	name := strings.TrimSpace(r.FormValue("name"))
	password := r.FormValue("password")

	user, err := h.authService.Register(email, password, name)
	if err != nil {
		var validationErr validation.ValidationError
		msg := "Registration failed"
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			msg = "An account with this email already exists"
		case errors.As(err, &validationErr):
			msg = validationErr.Message
		default:
			respondWithError(w, http.StatusInternalServerError, msg, "Registration error", err)
			return
		}
		h.renderAuthPage(w, "register.tmpl", authPageData{
			Error:     msg,
			Email:     email,
			Name:      name,
			Providers: h.providerNames(),
		})
		return
	}

	if err := h.emailService.SendWelcomeEmail(r.Context(), user.Email, user.DisplayName); err != nil {
		log.Printf("Failed to send welcome email to %s: %v", user.Email, err)
	}

	session, _, err := h.authService.Login(email, password)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, "session_id", session.ID, session.ExpiresAt))
	http.Redirect(w, r, roleHome(user.Role), http.StatusSeeOther)
}

// Logout invalidates the session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("session_id"); err == nil {
		if err := h.authService.Logout(cookie.Value); err != nil {
			log.Printf("Logout error: %v", err)
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, "session_id"))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) renderAuthPage(w http.ResponseWriter, name string, data authPageData) {
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to render page", "Template error", err)
	}
}
