// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for folio. Handlers are
// grouped by concern (public, auth, admin, api) and receive their
// dependencies through the handler struct. Stores are consumed through the
// small interfaces below so each group can be tested with in-memory fakes.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"folio/internal/cache"
	"folio/internal/markdown"
	"folio/internal/models"
	"folio/internal/storage"
)

// PostRepository is the post store. *store.PostStore implements it.
type PostRepository interface {
	List(ctx context.Context) ([]models.Post, error)
	ListPublished(ctx context.Context, limit, offset int) ([]models.Post, error)
	CountPublished(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	FindPublishedBySlug(ctx context.Context, slug string) (*models.Post, error)
	Save(ctx context.Context, p *models.Post) (*models.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProjectRepository is the project store. *store.ProjectStore implements it.
type ProjectRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.Project, error)
	Count(ctx context.Context) (int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Save(ctx context.Context, p *models.Project) (*models.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SkillRepository is the skill store. *store.SkillStore implements it.
type SkillRepository interface {
	List(ctx context.Context) ([]models.Skill, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Skill, error)
	Save(ctx context.Context, s *models.Skill) (*models.Skill, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SettingRepository is the section settings store. *store.SettingStore
// implements it.
type SettingRepository interface {
	Get(ctx context.Context, section models.Section) (models.SectionSettings, error)
	All(ctx context.Context) ([]models.SectionSettings, error)
	Set(ctx context.Context, section models.Section, itemsPerPage int) error
}

// DocumentCache holds rendered markdown keyed by post version.
// *cache.RenderCache implements it.
type DocumentCache interface {
	Get(ctx context.Context, postID uuid.UUID, version time.Time) (*markdown.Document, bool)
	Set(ctx context.Context, postID uuid.UUID, version time.Time, doc markdown.Document)
	Invalidate(ctx context.Context, postID uuid.UUID)
}

// AssetStore accepts uploaded images. *storage.Assets implements it.
type AssetStore interface {
	Put(ctx context.Context, filename string, r io.Reader) (*storage.Asset, error)
	Remove(ctx context.Context, url string) error
}

// sectionSettings reads per-section settings through the in-process cache.
type sectionSettings struct {
	store SettingRepository
	cache *cache.SettingsCache
}

// itemsPerPage returns the page size for section, falling back to the
// default when the store is unavailable.
func (s sectionSettings) itemsPerPage(ctx context.Context, section models.Section) int {
	if cached, ok := s.cache.Get(section); ok {
		return cached.ItemsPerPage
	}
	settings, err := s.store.Get(ctx, section)
	if err != nil {
		slog.Error("load section settings failed", "section", section, "error", err)
		return models.DefaultItemsPerPage
	}
	s.cache.Set(settings)
	return settings.ItemsPerPage
}

// Pagination describes one page of a paged list for the "pager" template.
type Pagination struct {
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

// Offset returns the number of items before the current page.
func (p Pagination) Offset(perPage int) int {
	return (p.Page - 1) * perPage
}

// paginate computes the page window for total items. Out-of-range pages
// are clamped to the nearest valid page.
func paginate(requested, total, perPage int) Pagination {
	if perPage < 1 {
		perPage = models.DefaultItemsPerPage
	}
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	page := requested
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	return Pagination{
		Page:       page,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    page < pages,
		PrevPage:   page - 1,
		NextPage:   page + 1,
	}
}

// pageParam reads ?page=N, defaulting to 1.
func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// isHTMX returns true for requests issued by HTMX.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends the browser to url, using HX-Redirect for HTMX requests.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write json response failed", "error", err)
	}
}

// writeJSONError writes {"error": msg}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
