// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"folio/internal/models"
)

const projectColumns = `id, title, description, image_url, demo_url, repo_url, created_at, updated_at`

// ProjectStore handles portfolio project persistence.
type ProjectStore struct {
	db *sql.DB
}

// NewProjectStore creates a new ProjectStore with the given database connection.
func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func scanProject(row scanner) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.ImageURL, &p.DemoURL, &p.RepoURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns one page of projects, newest first. A limit of zero or less
// returns every project.
func (s *ProjectStore) List(ctx context.Context, limit, offset int) ([]models.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Count returns the number of projects.
func (s *ProjectStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

// FindByID retrieves a project. Returns nil if not found.
func (s *ProjectStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return p, nil
}

// Save inserts or fully replaces a project.
func (s *ProjectStore) Save(ctx context.Context, p *models.Project) (*models.Project, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	saved, err := scanProject(s.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, title, description, image_url, demo_url, repo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			demo_url = EXCLUDED.demo_url,
			repo_url = EXCLUDED.repo_url,
			updated_at = NOW()
		RETURNING `+projectColumns,
		p.ID, p.Title, p.Description, p.ImageURL, p.DemoURL, p.RepoURL,
	))
	if err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	return saved, nil
}

// Delete removes a project by ID.
func (s *ProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// SkillStore handles skill persistence.
type SkillStore struct {
	db *sql.DB
}

// NewSkillStore creates a new SkillStore with the given database connection.
func NewSkillStore(db *sql.DB) *SkillStore {
	return &SkillStore{db: db}
}

const skillColumns = `id, name, percentage, created_at, updated_at`

func scanSkill(row scanner) (*models.Skill, error) {
	sk := &models.Skill{}
	if err := row.Scan(&sk.ID, &sk.Name, &sk.Percentage, &sk.CreatedAt, &sk.UpdatedAt); err != nil {
		return nil, err
	}
	return sk, nil
}

// List returns every skill, strongest first.
func (s *SkillStore) List(ctx context.Context) ([]models.Skill, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+skillColumns+` FROM skills ORDER BY percentage DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var skills []models.Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		skills = append(skills, *sk)
	}
	return skills, rows.Err()
}

// FindByID retrieves a skill. Returns nil if not found.
func (s *SkillStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	sk, err := scanSkill(s.db.QueryRowContext(ctx, `SELECT `+skillColumns+` FROM skills WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find skill: %w", err)
	}
	return sk, nil
}

// Save inserts or fully replaces a skill.
func (s *SkillStore) Save(ctx context.Context, sk *models.Skill) (*models.Skill, error) {
	if sk.ID == uuid.Nil {
		sk.ID = uuid.New()
	}

	saved, err := scanSkill(s.db.QueryRowContext(ctx, `
		INSERT INTO skills (id, name, percentage)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			percentage = EXCLUDED.percentage,
			updated_at = NOW()
		RETURNING `+skillColumns,
		sk.ID, sk.Name, sk.Percentage,
	))
	if err != nil {
		return nil, fmt.Errorf("save skill: %w", err)
	}
	return saved, nil
}

// Delete removes a skill by ID.
func (s *SkillStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM skills WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	return nil
}
