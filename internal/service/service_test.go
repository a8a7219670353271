package service

import (
	"path/filepath"
	"testing"

	"taskboard/internal/database"
	"taskboard/internal/models"
	"taskboard/internal/repository"
)

// newTestDB opens a throwaway SQLite database with the schema applied
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// seedProfile inserts a profile directly through the repository
func seedProfile(t *testing.T, userRepo *repository.UserRepository, subjectID, email string, role models.Role) {
	t.Helper()

	err := userRepo.CreateProfile(&models.UserProfile{
		SubjectID:   subjectID,
		Provider:    "google",
		Email:       email,
		DisplayName: email,
		Role:        role,
	})
	if err != nil {
		t.Fatalf("Failed to seed profile %s: %v", subjectID, err)
	}
}
