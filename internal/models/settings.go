// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "time"

// Section names a list view that has its own settings document.
type Section string

const (
	SectionPosts    Section = "posts"
	SectionProjects Section = "projects"
)

// Sections lists every section that owns a settings document.
var Sections = []Section{SectionPosts, SectionProjects}

const (
	DefaultItemsPerPage = 6
	MaxItemsPerPage     = 50
)

// SectionSettings is the per-section singleton read by list views.
type SectionSettings struct {
	Section      Section   `json:"section"`
	ItemsPerPage int       `json:"items_per_page"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings(section Section) SectionSettings {
	return SectionSettings{Section: section, ItemsPerPage: DefaultItemsPerPage}
}
