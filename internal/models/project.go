// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a portfolio entry. At least one of DemoURL or RepoURL is set.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	DemoURL     *string   `json:"demo_url,omitempty"`
	RepoURL     *string   `json:"repo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasLink returns true if the project has a demo or repository link.
func (p *Project) HasLink() bool {
	return (p.DemoURL != nil && *p.DemoURL != "") || (p.RepoURL != nil && *p.RepoURL != "")
}

// Skill is a named proficiency shown on the skills page.
type Skill struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Percentage int       `json:"percentage"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
