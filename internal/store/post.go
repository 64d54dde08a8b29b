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

const postColumns = `id, title, slug, about, author, date, cover_url, content, status, created_at, updated_at`

// PostStore handles all blog post database operations.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

func scanPost(row scanner) (*models.Post, error) {
	p := &models.Post{}
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.About, &p.Author, &p.Date,
		&p.CoverURL, &p.Content, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostStore) query(ctx context.Context, q string, args ...any) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// List returns every post regardless of status, newest first. Used by the
// admin panel and the moderation view.
func (s *PostStore) List(ctx context.Context) ([]models.Post, error) {
	posts, err := s.query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListPublished returns one page of published posts, newest first.
func (s *PostStore) ListPublished(ctx context.Context, limit, offset int) ([]models.Post, error) {
	posts, err := s.query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE status = 'published'
		ORDER BY date DESC, created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	return posts, nil
}

// CountPublished returns the number of published posts.
func (s *PostStore) CountPublished(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE status = 'published'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count published posts: %w", err)
	}
	return n, nil
}

// Count returns the number of posts in any status.
func (s *PostStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// FindByID retrieves a post by its UUID in any status. Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by id: %w", err)
	}
	return p, nil
}

// FindPublishedBySlug retrieves a published post by its slug. Drafts are
// never returned. Returns nil if not found.
func (s *PostStore) FindPublishedBySlug(ctx context.Context, slug string) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE slug = $1 AND status = 'published'
	`, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by slug: %w", err)
	}
	return p, nil
}

// Save writes the full post document. A post without an ID is inserted
// with a fresh UUID; otherwise the stored row is replaced. The returned
// post carries the stored timestamps.
func (s *PostStore) Save(ctx context.Context, p *models.Post) (*models.Post, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	saved, err := scanPost(s.db.QueryRowContext(ctx, `
		INSERT INTO posts (id, title, slug, about, author, date, cover_url, content, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			slug = EXCLUDED.slug,
			about = EXCLUDED.about,
			author = EXCLUDED.author,
			date = EXCLUDED.date,
			cover_url = EXCLUDED.cover_url,
			content = EXCLUDED.content,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING `+postColumns,
		p.ID, p.Title, p.Slug, p.About, p.Author, p.Date, p.CoverURL, p.Content, p.Status,
	))
	if err != nil {
		return nil, wrapWrite("save post", err)
	}
	return saved, nil
}

// Delete removes a post by ID. Its comments and likes are left in place.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}
