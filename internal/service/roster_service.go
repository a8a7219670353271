package service

import (
	"fmt"
	"sort"
	"strings"

	"taskboard/internal/repository"
)

// RosterService resolves human-entered recipient emails to durable learner
// subject ids.
type RosterService struct {
	userRepo *repository.UserRepository
}

// NewRosterService creates a new roster service
func NewRosterService(userRepo *repository.UserRepository) *RosterService {
	return &RosterService{userRepo: userRepo}
}

// SplitEmails normalizes a free-text, comma-separated email list: tokens
// are trimmed, lowercased and deduplicated; empty tokens are dropped.
func SplitEmails(raw string) []string {
	seen := make(map[string]bool)
	var emails []string
	for _, token := range strings.Split(raw, ",") {
		email := strings.ToLower(strings.TrimSpace(token))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		emails = append(emails, email)
	}
	return emails
}

// Resolve maps a raw email list to the set of matching learner subject ids.
// Resolution is one filtered scan of the identity store cross-referenced in
// memory, not one lookup per email. Emails with no matching learner profile
// are silently dropped; the returned set size is the ground truth for how
// many recipients were actually matched. Empty input yields an empty set
// without touching the store.
func (s *RosterService) Resolve(raw string) ([]string, error) {
	emails := SplitEmails(raw)
	if len(emails) == 0 {
		return nil, nil
	}

	wanted := make(map[string]bool, len(emails))
	for _, email := range emails {
		wanted[email] = true
	}

	learners, err := s.userRepo.ListLearners()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	seen := make(map[string]bool)
	var subjectIDs []string
	for _, learner := range learners {
		email := strings.ToLower(learner.Email)
		if !wanted[email] || seen[learner.SubjectID] {
			continue
		}
		seen[learner.SubjectID] = true
		subjectIDs = append(subjectIDs, learner.SubjectID)
	}

	sort.Strings(subjectIDs)
	return subjectIDs, nil
}

// EmailsFor returns the known email for each of the given learner subject
// ids, for display on guardian views. Ids with no learner profile are
// omitted.
func (s *RosterService) EmailsFor(subjectIDs []string) (map[string]string, error) {
	if len(subjectIDs) == 0 {
		return map[string]string{}, nil
	}

	wanted := make(map[string]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		wanted[id] = true
	}

	learners, err := s.userRepo.ListLearners()
	if err != nil {
		return nil, fmt.Errorf("failed to look up recipient emails: %w", err)
	}

	emails := make(map[string]string)
	for _, learner := range learners {
		if wanted[learner.SubjectID] {
			emails[learner.SubjectID] = learner.Email
		}
	}
	return emails, nil
}
