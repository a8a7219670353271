package service

import (
	"errors"
	"testing"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/repository"
)

func TestResolveProfileFirstSignIn(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	userRepo := repository.NewUserRepository(newTestDB(t))
	forced := map[string]string{"kid@example.com": "learner"}
	authService := NewAuthService(userRepo, forced, time.Hour)

	tests := []struct {
		name     string
		subject  string
		email    string
		wantRole models.Role
	}{
		{"unknown email becomes guardian", "sub-1", "parent@example.com", models.RoleGuardian},
		{"forced email becomes learner", "sub-2", "kid@example.com", models.RoleLearner},
		{"forced lookup ignores case", "sub-3", "KID@example.com", models.RoleLearner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := authService.ResolveProfile("google", tt.subject, tt.email, "Someone")
			if err != nil {
				t.Fatalf("ResolveProfile() error = %v", err)
			}
			if profile.Role != tt.wantRole {
				t.Errorf("ResolveProfile() role = %q, want %q", profile.Role, tt.wantRole)
			}

			// A second sign-in returns the same profile
			again, err := authService.ResolveProfile("google", tt.subject, tt.email, "Someone")
			if err != nil {
				t.Fatalf("ResolveProfile() second call error = %v", err)
			}
			if again.SubjectID != profile.SubjectID || again.Role != profile.Role {
				t.Errorf("second sign-in changed the profile: %+v vs %+v", again, profile)
			}
		})
	}
}

func TestResolveProfileForcedMigration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	userRepo := repository.NewUserRepository(newTestDB(t))

	// Profile created before the forced-role entry existed
	plain := NewAuthService(userRepo, nil, time.Hour)
	profile, err := plain.ResolveProfile("google", "sub-1", "kid@example.com", "Kid")
	if err != nil {
		t.Fatalf("ResolveProfile() error = %v", err)
	}
	if profile.Role != models.RoleGuardian {
		t.Fatalf("expected default guardian role, got %q", profile.Role)
	}

	// Sign-in after the entry was added migrates the role once
	forced := NewAuthService(userRepo, map[string]string{"kid@example.com": "learner"}, time.Hour)
	migrated, err := forced.ResolveProfile("google", "sub-1", "kid@example.com", "Kid")
	if err != nil {
		t.Fatalf("ResolveProfile() error = %v", err)
	}
	if migrated.Role != models.RoleLearner {
		t.Errorf("expected migrated learner role, got %q", migrated.Role)
	}

	stored, err := userRepo.GetProfile("google:sub-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if stored.Role != models.RoleLearner {
		t.Errorf("stored role = %q, want learner", stored.Role)
	}

	// Repeat sign-ins are stable
	again, err := forced.ResolveProfile("google", "sub-1", "kid@example.com", "Kid")
	if err != nil {
		t.Fatalf("ResolveProfile() error = %v", err)
	}
	if again.Role != models.RoleLearner {
		t.Errorf("repeat sign-in role = %q, want learner", again.Role)
	}
}

func TestResolveProfileNeverMigratesLearnerToGuardian(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	userRepo := repository.NewUserRepository(newTestDB(t))
	seedProfile(t, userRepo, "google:sub-1", "kid@example.com", models.RoleLearner)

	// Even a guardian entry in the forced table leaves an existing learner alone
	forced := NewAuthService(userRepo, map[string]string{"kid@example.com": "guardian"}, time.Hour)
	profile, err := forced.ResolveProfile("google", "sub-1", "kid@example.com", "Kid")
	if err != nil {
		t.Fatalf("ResolveProfile() error = %v", err)
	}
	if profile.Role != models.RoleLearner {
		t.Errorf("role = %q, learner must never be migrated back to guardian", profile.Role)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	userRepo := repository.NewUserRepository(newTestDB(t))
	authService := NewAuthService(userRepo, nil, time.Hour)

	profile, err := authService.Register("parent@example.com", "secret-password", "Parent")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if profile.Role != models.RoleGuardian {
		t.Errorf("registered role = %q, want guardian", profile.Role)
	}

	if _, err := authService.Register("parent@example.com", "other-password", "Parent"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate Register() error = %v, want ErrEmailTaken", err)
	}

	if _, _, err := authService.Login("parent@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with wrong password error = %v, want ErrInvalidCredentials", err)
	}

	session, user, err := authService.Login("parent@example.com", "secret-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.SubjectID != profile.SubjectID {
		t.Errorf("Login() subject = %q, want %q", user.SubjectID, profile.SubjectID)
	}

	validated, err := authService.ValidateSession(session.ID)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if validated.SubjectID != profile.SubjectID {
		t.Errorf("ValidateSession() subject = %q, want %q", validated.SubjectID, profile.SubjectID)
	}

	if err := authService.Logout(session.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := authService.ValidateSession(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ValidateSession() after logout error = %v, want ErrSessionNotFound", err)
	}
}

func TestOAuthSignInRequiresIdentity(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	userRepo := repository.NewUserRepository(newTestDB(t))
	authService := NewAuthService(userRepo, nil, time.Hour)

	if _, _, err := authService.OAuthSignIn("google", "", "x@example.com", "X"); err == nil {
		t.Error("OAuthSignIn() with empty subject should fail")
	}
}
