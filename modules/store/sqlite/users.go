package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/recall/internal/memory"
)

// Profile returns the user's onboarding profile or memory.ErrUnknownUser.
func (s *Store) Profile(ctx context.Context, userID string) (memory.Profile, error) {
	p := memory.Profile{UserID: userID}
	var diseases, symptoms, meds, allergies string
	err := s.db.QueryRowContext(ctx, `
		SELECT full_name, age, gender, previous_diseases, current_symptoms,
		       medications, allergies, additional_notes
		FROM users WHERE user_id = ?`, userID,
	).Scan(&p.FullName, &p.Age, &p.Gender, &diseases, &symptoms, &meds, &allergies, &p.AdditionalNotes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, fmt.Errorf("sqlite: user %s: %w", userID, memory.ErrUnknownUser)
		}
		return p, fmt.Errorf("sqlite: read profile: %w", err)
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{diseases, &p.PreviousDiseases},
		{symptoms, &p.CurrentSymptoms},
		{meds, &p.Medications},
		{allergies, &p.Allergies},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return p, fmt.Errorf("sqlite: decode profile %s: %w", userID, err)
		}
	}
	return p, nil
}

// SaveProfile inserts or replaces a user's profile.
func (s *Store) SaveProfile(ctx context.Context, p memory.Profile) error {
	if p.UserID == "" {
		return errors.New("sqlite: profile user id is required")
	}

	lists := make([]string, 0, 4)
	for _, items := range [][]string{p.PreviousDiseases, p.CurrentSymptoms, p.Medications, p.Allergies} {
		if items == nil {
			items = []string{}
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("sqlite: encode profile: %w", err)
		}
		lists = append(lists, string(raw))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, full_name, age, gender, previous_diseases,
		                   current_symptoms, medications, allergies, additional_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			full_name         = excluded.full_name,
			age               = excluded.age,
			gender            = excluded.gender,
			previous_diseases = excluded.previous_diseases,
			current_symptoms  = excluded.current_symptoms,
			medications       = excluded.medications,
			allergies         = excluded.allergies,
			additional_notes  = excluded.additional_notes`,
		p.UserID, p.FullName, p.Age, p.Gender, lists[0], lists[1], lists[2], lists[3],
		p.AdditionalNotes, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save profile: %w", err)
	}
	return nil
}
