// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package interact implements likes and comments on blog posts: the
// mutations signed-in readers can make, the full snapshots shown to every
// reader, and the live subscriptions that keep those snapshots current.
package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"folio/internal/gate"
	"folio/internal/live"
	"folio/internal/models"
)

// MaxCommentLength is the longest comment accepted, in runes.
const MaxCommentLength = 2000

var (
	ErrForbidden      = errors.New("not allowed to modify this comment")
	ErrEmptyComment   = errors.New("comment text is empty")
	ErrCommentTooLong = fmt.Errorf("comment is longer than %d characters", MaxCommentLength)
	ErrUnknownUser    = errors.New("unknown user")
	ErrNotFound       = errors.New("not found")
)

// PostReader is the subset of the post store the service reads.
type PostReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
}

// CommentRepository persists comments.
type CommentRepository interface {
	ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	ListAll(ctx context.Context) ([]models.Comment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// LikeRepository persists likes.
type LikeRepository interface {
	ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Like, error)
	ListAll(ctx context.Context) ([]models.Like, error)
	FindByPostAndUser(ctx context.Context, postID, userID uuid.UUID) ([]models.Like, error)
	Create(ctx context.Context, postID, userID uuid.UUID) (*models.Like, error)
	Delete(ctx context.Context, ids ...uuid.UUID) error
}

// Author is the commenter's public profile at the time of writing. It is
// copied onto the comment and never refreshed.
type Author struct {
	UserID      uuid.UUID
	DisplayName string
	AvatarURL   string
}

// Service coordinates interaction reads, writes and change notifications.
type Service struct {
	posts    PostReader
	comments CommentRepository
	likes    LikeRepository
	hub      *live.Hub
	admin    gate.AdminIdentity
}

// NewService wires the service to its stores and the live hub.
func NewService(posts PostReader, comments CommentRepository, likes LikeRepository, hub *live.Hub, admin gate.AdminIdentity) *Service {
	return &Service{
		posts:    posts,
		comments: comments,
		likes:    likes,
		hub:      hub,
		admin:    admin,
	}
}

// requirePost returns ErrNotFound unless postID names a published post.
func (s *Service) requirePost(ctx context.Context, postID uuid.UUID) error {
	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil || !p.IsPublished() {
		return ErrNotFound
	}
	return nil
}

// ToggleLike flips the user's like on a post and reports whether the post
// is now liked. Every matching like row is removed when unliking, so
// duplicates left by concurrent toggles disappear on the next toggle.
func (s *Service) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, ErrUnknownUser
	}
	if err := s.requirePost(ctx, postID); err != nil {
		return false, err
	}

	existing, err := s.likes.FindByPostAndUser(ctx, postID, userID)
	if err != nil {
		return false, err
	}

	liked := len(existing) == 0
	if liked {
		if _, err := s.likes.Create(ctx, postID, userID); err != nil {
			return false, err
		}
	} else {
		ids := make([]uuid.UUID, len(existing))
		for i, l := range existing {
			ids[i] = l.ID
		}
		if len(ids) > 1 {
			slog.Warn("removing duplicate likes", "post_id", postID, "user_id", userID, "count", len(ids))
		}
		if err := s.likes.Delete(ctx, ids...); err != nil {
			return false, err
		}
	}

	s.hub.Notify(ctx, live.Query{Collection: live.CollectionLikes, PostID: postID})
	return liked, nil
}

// AddComment stores a new comment with a snapshot of the author's profile.
func (s *Service) AddComment(ctx context.Context, postID uuid.UUID, author Author, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	if author.UserID == uuid.Nil {
		return nil, ErrUnknownUser
	}
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}

	c, err := s.comments.Create(ctx, &models.Comment{
		PostID:      postID,
		UserID:      author.UserID,
		DisplayName: author.DisplayName,
		AvatarURL:   author.AvatarURL,
		Text:        text,
	})
	if err != nil {
		return nil, err
	}

	s.hub.Notify(ctx, live.Query{Collection: live.CollectionComments, PostID: postID})
	return c, nil
}

// DeleteComment removes a comment if requester wrote it or is the admin.
func (s *Service) DeleteComment(ctx context.Context, commentID uuid.UUID, requester gate.Identity) error {
	c, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	if !s.CanDelete(*c, requester) {
		return ErrForbidden
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		return err
	}

	s.hub.Notify(ctx, live.Query{Collection: live.CollectionComments, PostID: c.PostID})
	return nil
}

// CanDelete reports whether requester may delete c.
func (s *Service) CanDelete(c models.Comment, requester gate.Identity) bool {
	if requester.UserID == uuid.Nil {
		return false
	}
	return c.UserID == requester.UserID || s.admin.Matches(requester)
}

// Likes returns every like on a post.
func (s *Service) Likes(ctx context.Context, postID uuid.UUID) ([]models.Like, error) {
	return s.likes.ListByPost(ctx, postID)
}

// Comments returns every comment on a post, newest first.
func (s *Service) Comments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(comments)
	return comments, nil
}

// SortNewestFirst orders comments by creation time, newest first.
func SortNewestFirst(comments []models.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
}

// SubscribeLikes delivers the post's likes now and after every change.
func (s *Service) SubscribeLikes(ctx context.Context, postID uuid.UUID, deliver func([]models.Like)) *live.Subscription {
	q := live.Query{Collection: live.CollectionLikes, PostID: postID}
	return s.hub.Subscribe(ctx, q, func(ctx context.Context) (live.Snapshot, error) {
		likes, err := s.Likes(ctx, postID)
		return live.Snapshot{Likes: likes}, err
	}, func(snap live.Snapshot) { deliver(snap.Likes) })
}

// SubscribeComments delivers the post's comments, newest first, now and
// after every change.
func (s *Service) SubscribeComments(ctx context.Context, postID uuid.UUID, deliver func([]models.Comment)) *live.Subscription {
	q := live.Query{Collection: live.CollectionComments, PostID: postID}
	return s.hub.Subscribe(ctx, q, func(ctx context.Context) (live.Snapshot, error) {
		comments, err := s.Comments(ctx, postID)
		return live.Snapshot{Comments: comments}, err
	}, func(snap live.Snapshot) { deliver(snap.Comments) })
}

// ModerationSummary returns every post with its comment and like counts.
// It scans all comments and likes, which is fine at portfolio scale.
func (s *Service) ModerationSummary(ctx context.Context) ([]models.PostActivity, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	likes, err := s.likes.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	commentCounts := make(map[uuid.UUID]int)
	for _, c := range comments {
		commentCounts[c.PostID]++
	}
	likeCounts := make(map[uuid.UUID]int)
	for _, l := range likes {
		likeCounts[l.PostID]++
	}

	out := make([]models.PostActivity, 0, len(posts))
	for _, p := range posts {
		out = append(out, models.PostActivity{
			Post:         p,
			CommentCount: commentCounts[p.ID],
			LikeCount:    likeCounts[p.ID],
		})
	}
	return out, nil
}
