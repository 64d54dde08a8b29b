// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus represents the publishing state of a blog post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post is a blog article. Content holds the raw markdown body; the HTML is
// produced at render time and never stored.
type Post struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Slug      string     `json:"slug"`
	About     string     `json:"about"`
	Author    string     `json:"author"`
	Date      time.Time  `json:"date"`
	CoverURL  string     `json:"cover_url"`
	Content   string     `json:"content"`
	Status    PostStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsNew reports whether the post has not been stored yet.
func (p *Post) IsNew() bool {
	return p.ID == uuid.Nil
}

// IsPublished returns true if the post is visible on the public blog.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}
