package repository

import (
	"database/sql"
	"fmt"
	"time"

	"taskboard/internal/database"
	"taskboard/internal/models"
)

// UserRepository is the identity store adapter: it owns the users and
// sessions tables. Profiles are point-read by subject id and point-written
// whole; the only partial update is the role field, reserved for the auth
// service's role resolution.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const profileColumns = "subject_id, provider, email, display_name, password_hash, role, created_at, updated_at"

func scanProfile(row interface{ Scan(...interface{}) error }) (*models.UserProfile, error) {
	user := &models.UserProfile{}
	err := row.Scan(
		&user.SubjectID,
		&user.Provider,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateProfile inserts a new user profile
func (r *UserRepository) CreateProfile(user *models.UserProfile) error {
	query := `
		INSERT INTO users (subject_id, provider, email, display_name, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.Exec(query,
		user.SubjectID, user.Provider, user.Email, user.DisplayName,
		user.PasswordHash, string(user.Role), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by subject id, or nil if absent
func (r *UserRepository) GetProfile(subjectID string) (*models.UserProfile, error) {
	query := "SELECT " + profileColumns + " FROM users WHERE subject_id = ?"
	user, err := scanProfile(r.db.QueryRow(query, subjectID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return user, nil
}

// GetLocalProfileByEmail retrieves a locally registered profile by email,
// or nil if absent
func (r *UserRepository) GetLocalProfileByEmail(email string) (*models.UserProfile, error) {
	query := "SELECT " + profileColumns + " FROM users WHERE provider = 'local' AND email = ?"
	user, err := scanProfile(r.db.QueryRow(query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return user, nil
}

// UpdateRole overwrites only the role field of a profile
func (r *UserRepository) UpdateRole(subjectID string, role models.Role) error {
	query := "UPDATE users SET role = ?, updated_at = ? WHERE subject_id = ?"
	_, err := r.db.Exec(query, string(role), time.Now(), subjectID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

// ListLearners retrieves all learner profiles in a single filtered scan.
// Recipient resolution cross-references this scan in memory rather than
// issuing one query per email, keeping the cost at one round trip.
func (r *UserRepository) ListLearners() ([]models.UserProfile, error) {
	query := "SELECT " + profileColumns + " FROM users WHERE role = ?"
	rows, err := r.db.Query(query, string(models.RoleLearner))
	if err != nil {
		return nil, fmt.Errorf("failed to scan learners: %w", err)
	}
	defer rows.Close()

	var learners []models.UserProfile
	for rows.Next() {
		user, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learner row: %w", err)
		}
		learners = append(learners, *user)
	}

	return learners, rows.Err()
}

// CreateSession creates a new session for a user
func (r *UserRepository) CreateSession(sessionID, subjectID string, expiresAt time.Time) (*models.Session, error) {
	query := "INSERT INTO sessions (id, subject_id, expires_at, created_at) VALUES (?, ?, ?, ?)"
	createdAt := time.Now()
	if _, err := r.db.Exec(query, sessionID, subjectID, expiresAt, createdAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		ID:        sessionID,
		SubjectID: subjectID,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// GetSession retrieves a session by ID, or nil if absent
func (r *UserRepository) GetSession(sessionID string) (*models.Session, error) {
	query := "SELECT id, subject_id, expires_at, created_at FROM sessions WHERE id = ?"
	session := &models.Session{}
	err := r.db.QueryRow(query, sessionID).Scan(
		&session.ID,
		&session.SubjectID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session
func (r *UserRepository) DeleteSession(sessionID string) error {
	query := "DELETE FROM sessions WHERE id = ?"
	if _, err := r.db.Exec(query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions
func (r *UserRepository) DeleteExpiredSessions() error {
	query := "DELETE FROM sessions WHERE expires_at < ?"
	if _, err := r.db.Exec(query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}
