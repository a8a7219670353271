package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/repository"
	"taskboard/internal/security"
	"taskboard/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// AuthService handles sign-in, sessions and role resolution. It is the only
// writer of the profile role field.
type AuthService struct {
	userRepo        *repository.UserRepository
	forcedRoles     map[string]models.Role
	sessionDuration time.Duration
}

// NewAuthService creates a new auth service. forcedRoles maps lowercased
// emails to roles that override the default first-sign-in rule; it also
// drives the one-time guardian-to-learner migration for existing profiles.
func NewAuthService(userRepo *repository.UserRepository, forcedRoles map[string]string, sessionDuration time.Duration) *AuthService {
	forced := make(map[string]models.Role, len(forcedRoles))
	for email, role := range forcedRoles {
		forced[strings.ToLower(email)] = models.Role(role)
	}
	return &AuthService{
		userRepo:        userRepo,
		forcedRoles:     forced,
		sessionDuration: sessionDuration,
	}
}

// roleForEmail applies the first-sign-in rule: emails in the forced table
// get their configured role, everyone else becomes a guardian.
func (s *AuthService) roleForEmail(email string) models.Role {
	if role, ok := s.forcedRoles[strings.ToLower(email)]; ok {
		return role
	}
	return models.RoleGuardian
}

// subjectKey namespaces provider subjects so ids from different identity
// providers cannot collide in the store.
func subjectKey(provider, subject string) string {
	return provider + ":" + subject
}

// ResolveProfile establishes the durable profile for a freshly
// authenticated identity.
//
// First sign-in creates the profile with the role derived from the email.
// On later sign-ins the stored profile is returned unchanged, with one
// exception: if the forced-role table maps the email to learner and the
// stored role is still guardian, only the role field is overwritten before
// returning. The inverse migration never happens. Repeated calls for an
// unchanged identity are idempotent after at most one corrective write.
//
// Any store failure is returned as-is and must abort the sign-in: no
// session may be created on an ambiguous identity.
func (s *AuthService) ResolveProfile(provider, subject, email, displayName string) (*models.UserProfile, error) {
	subjectID := subjectKey(provider, subject)

	profile, err := s.userRepo.GetProfile(subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if profile == nil {
		profile = &models.UserProfile{
			SubjectID:   subjectID,
			Provider:    provider,
			Email:       email,
			DisplayName: displayName,
			Role:        s.roleForEmail(email),
		}
		if err := s.userRepo.CreateProfile(profile); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		return profile, nil
	}

	if s.roleForEmail(email) == models.RoleLearner && profile.Role == models.RoleGuardian {
		if err := s.userRepo.UpdateRole(subjectID, models.RoleLearner); err != nil {
			return nil, fmt.Errorf("failed to migrate role: %w", err)
		}
		profile.Role = models.RoleLearner
	}

	return profile, nil
}

// OAuthSignIn resolves the profile for a federated identity and opens a
// session. A failed resolution fails the sign-in as a whole.
func (s *AuthService) OAuthSignIn(provider, subject, email, displayName string) (*models.Session, *models.UserProfile, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing identity provider information")
	}

	profile, err := s.ResolveProfile(provider, subject, email, displayName)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(profile.SubjectID)
	if err != nil {
		return nil, nil, err
	}
	return session, profile, nil
}

// Register creates a local account. Locally registered users flow through
// the same role rule as federated ones.
func (s *AuthService) Register(email, password, name string) (*models.UserProfile, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetLocalProfileByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &models.UserProfile{
		SubjectID:    subjectKey("local", security.GenerateSessionID()),
		Provider:     "local",
		Email:        email,
		DisplayName:  name,
		PasswordHash: passwordHash,
		Role:         s.roleForEmail(email),
	}
	if err := s.userRepo.CreateProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return profile, nil
}

// Login authenticates a local account and opens a session
func (s *AuthService) Login(email, password string) (*models.Session, *models.UserProfile, error) {
	profile, err := s.userRepo.GetLocalProfileByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil || !security.CheckPassword(password, profile.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.createSession(profile.SubjectID)
	if err != nil {
		return nil, nil, err
	}
	return session, profile, nil
}

func (s *AuthService) createSession(subjectID string) (*models.Session, error) {
	sessionID := security.GenerateSessionID()
	expiresAt := time.Now().Add(s.sessionDuration)

	session, err := s.userRepo.CreateSession(sessionID, subjectID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession checks if a session is valid and returns the associated profile
func (s *AuthService) ValidateSession(sessionID string) (*models.UserProfile, error) {
	session, err := s.userRepo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		_ = s.userRepo.DeleteSession(sessionID)
		return nil, ErrSessionExpired
	}

	profile, err := s.userRepo.GetProfile(session.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, ErrSessionNotFound
	}

	return profile, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(sessionID string) error {
	if err := s.userRepo.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions() error {
	if err := s.userRepo.DeleteExpiredSessions(); err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return nil
}
