// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a reader's comment on a post. DisplayName and AvatarURL are a
// snapshot of the author's profile at the time the comment was written.
type Comment struct {
	ID          uuid.UUID `json:"id"`
	PostID      uuid.UUID `json:"post_id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Like records that a user liked a post.
type Like struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostActivity aggregates interaction counts for one post on the admin
// moderation screen.
type PostActivity struct {
	Post         Post
	CommentCount int
	LikeCount    int
}
