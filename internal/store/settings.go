package store

import (
	"context"
	"database/sql"
	"fmt"

	"folio/internal/models"
)

// SettingStore reads and writes per-section display settings.
type SettingStore struct {
	db *sql.DB
}

// NewSettingStore creates a new SettingStore with the given database connection.
func NewSettingStore(db *sql.DB) *SettingStore {
	return &SettingStore{db: db}
}

// Get returns the settings for a section. A missing row yields the
// defaults rather than nil, so callers can always paginate.
func (s *SettingStore) Get(ctx context.Context, section models.Section) (models.SectionSettings, error) {
	st := models.SectionSettings{}
	err := s.db.QueryRowContext(ctx, `
		SELECT section, items_per_page, updated_at FROM section_settings WHERE section = $1
	`, section).Scan(&st.Section, &st.ItemsPerPage, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(section), nil
	}
	if err != nil {
		return models.SectionSettings{}, fmt.Errorf("get section settings: %w", err)
	}
	return st, nil
}

// All returns the settings for every known section.
func (s *SettingStore) All(ctx context.Context) ([]models.SectionSettings, error) {
	out := make([]models.SectionSettings, 0, len(models.Sections))
	for _, sec := range models.Sections {
		st, err := s.Get(ctx, sec)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Set upserts the items-per-page value for a section.
func (s *SettingStore) Set(ctx context.Context, section models.Section, itemsPerPage int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO section_settings (section, items_per_page, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (section) DO UPDATE SET items_per_page = EXCLUDED.items_per_page, updated_at = NOW()
	`, section, itemsPerPage)
	if err != nil {
		return fmt.Errorf("set section settings: %w", err)
	}
	return nil
}
