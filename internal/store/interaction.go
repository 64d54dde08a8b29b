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

// CommentStore handles comment persistence. Comments are created and
// deleted, never updated.
type CommentStore struct {
	db *sql.DB
}

// NewCommentStore creates a new CommentStore with the given database connection.
func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentColumns = `id, post_id, user_id, display_name, avatar_url, text, created_at`

func scanComment(row scanner) (*models.Comment, error) {
	c := &models.Comment{}
	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.DisplayName, &c.AvatarURL, &c.Text, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CommentStore) query(ctx context.Context, q string, args ...any) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

// ListByPost returns all comments on a post in storage order. Callers sort.
func (s *CommentStore) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	comments, err := s.query(ctx, `SELECT `+commentColumns+` FROM comments WHERE post_id = $1`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments by post: %w", err)
	}
	return comments, nil
}

// ListAll returns every comment in the store.
func (s *CommentStore) ListAll(ctx context.Context) ([]models.Comment, error) {
	comments, err := s.query(ctx, `SELECT `+commentColumns+` FROM comments`)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// FindByID retrieves a comment. Returns nil if not found.
func (s *CommentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

// Create inserts a comment and returns it with its ID and timestamp.
func (s *CommentStore) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	created, err := scanComment(s.db.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, user_id, display_name, avatar_url, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+commentColumns,
		c.PostID, c.UserID, c.DisplayName, c.AvatarURL, c.Text,
	))
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return created, nil
}

// Delete removes a comment by ID.
func (s *CommentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// Count returns the total number of comments.
func (s *CommentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

// LikeStore handles like persistence. There is no unique constraint on
// (post_id, user_id); see interact.Service.ToggleLike.
type LikeStore struct {
	db *sql.DB
}

// NewLikeStore creates a new LikeStore with the given database connection.
func NewLikeStore(db *sql.DB) *LikeStore {
	return &LikeStore{db: db}
}

const likeColumns = `id, post_id, user_id, created_at`

func (s *LikeStore) query(ctx context.Context, q string, args ...any) ([]models.Like, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var likes []models.Like
	for rows.Next() {
		var l models.Like
		if err := rows.Scan(&l.ID, &l.PostID, &l.UserID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan like: %w", err)
		}
		likes = append(likes, l)
	}
	return likes, rows.Err()
}

// ListByPost returns all likes on a post.
func (s *LikeStore) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Like, error) {
	likes, err := s.query(ctx, `SELECT `+likeColumns+` FROM likes WHERE post_id = $1`, postID)
	if err != nil {
		return nil, fmt.Errorf("list likes by post: %w", err)
	}
	return likes, nil
}

// ListAll returns every like in the store.
func (s *LikeStore) ListAll(ctx context.Context) ([]models.Like, error) {
	likes, err := s.query(ctx, `SELECT `+likeColumns+` FROM likes`)
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	return likes, nil
}

// FindByPostAndUser returns every like row matching the pair. More than one
// row means two toggles raced.
func (s *LikeStore) FindByPostAndUser(ctx context.Context, postID, userID uuid.UUID) ([]models.Like, error) {
	likes, err := s.query(ctx, `SELECT `+likeColumns+` FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("find likes by post and user: %w", err)
	}
	return likes, nil
}

// Create inserts a like.
func (s *LikeStore) Create(ctx context.Context, postID, userID uuid.UUID) (*models.Like, error) {
	l := &models.Like{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO likes (post_id, user_id) VALUES ($1, $2)
		RETURNING `+likeColumns,
		postID, userID,
	).Scan(&l.ID, &l.PostID, &l.UserID, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create like: %w", err)
	}
	return l, nil
}

// Delete removes the likes with the given IDs.
func (s *LikeStore) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM likes WHERE id = ANY($1::uuid[])`, strs); err != nil {
		return fmt.Errorf("delete likes: %w", err)
	}
	return nil
}

// Count returns the total number of likes.
func (s *LikeStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}
