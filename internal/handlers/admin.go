// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"folio/internal/cache"
	"folio/internal/gate"
	"folio/internal/interact"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/render"
	"folio/internal/slug"
	"folio/internal/storage"
	"folio/internal/store"
)

// Counter reports a row count. The comment and like stores implement it.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Moderator is the part of the interaction service the admin panel uses.
// *interact.Service implements it.
type Moderator interface {
	ModerationSummary(ctx context.Context) ([]models.PostActivity, error)
	Comments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	DeleteComment(ctx context.Context, commentID uuid.UUID, requester gate.Identity) error
}

// Admin groups all admin panel HTTP handlers and their dependencies.
type Admin struct {
	renderer      *render.Renderer
	posts         PostRepository
	projects      ProjectRepository
	skills        SkillRepository
	settings      SettingRepository
	settingsCache *cache.SettingsCache
	moderator     Moderator
	comments      Counter
	likes         Counter
	docs          DocumentCache
	assets        AssetStore
}

// NewAdmin creates a new Admin handler group. assets may be nil when
// object storage is not configured; uploads then answer 503.
func NewAdmin(renderer *render.Renderer, posts PostRepository, projects ProjectRepository, skills SkillRepository, settings SettingRepository, settingsCache *cache.SettingsCache, moderator Moderator, comments, likes Counter, docs DocumentCache, assets AssetStore) *Admin {
	return &Admin{
		renderer:      renderer,
		posts:         posts,
		projects:      projects,
		skills:        skills,
		settings:      settings,
		settingsCache: settingsCache,
		moderator:     moderator,
		comments:      comments,
		likes:         likes,
		docs:          docs,
		assets:        assets,
	}
}

// Dashboard renders the admin dashboard with content and interaction totals.
func (a *Admin) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count := func(what string, c Counter) int {
		n, err := c.Count(ctx)
		if err != nil {
			slog.Error("dashboard count failed", "what", what, "error", err)
		}
		return n
	}
	skills, err := a.skills.List(ctx)
	if err != nil {
		slog.Error("dashboard count failed", "what", "skills", "error", err)
	}

	a.renderer.Page(w, r, "admin/dashboard", &render.PageData{
		Title:   "Dashboard",
		Section: "dashboard",
		Data: map[string]any{
			"PostCount":    count("posts", a.posts),
			"ProjectCount": count("projects", a.projects),
			"SkillCount":   len(skills),
			"CommentCount": count("comments", a.comments),
			"LikeCount":    count("likes", a.likes),
		},
	})
}

// --- Posts CRUD ---

// PostsList renders every post, drafts included.
func (a *Admin) PostsList(w http.ResponseWriter, r *http.Request) {
	posts, err := a.posts.List(r.Context())
	if err != nil {
		slog.Error("list posts failed", "error", err)
	}

	a.renderer.Page(w, r, "admin/posts", &render.PageData{
		Title:   "Posts",
		Section: "posts",
		Data:    map[string]any{"Items": posts},
	})
}

// PostNew renders the new post form.
func (a *Admin) PostNew(w http.ResponseWriter, r *http.Request) {
	item := &models.Post{Status: models.PostStatusDraft, Date: time.Now()}
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil {
		item.Author = sess.DisplayName
	}
	a.postForm(w, r, http.StatusOK, item, true, "")
}

// PostCreate handles the new post form submission. The slug comes from
// the slug field when given, otherwise from the title.
func (a *Admin) PostCreate(w http.ResponseWriter, r *http.Request) {
	item := &models.Post{}
	postFromForm(r, item)
	item.Slug = slugFromForm(r.FormValue("slug"), item.Title)

	if errMsg := validatePost(item); errMsg != "" {
		a.postForm(w, r, http.StatusUnprocessableEntity, item, true, errMsg)
		return
	}

	created, err := a.posts.Save(r.Context(), item)
	if err != nil {
		slog.Error("create post failed", "error", err, "slug", item.Slug)
		item.ID = uuid.Nil
		a.postForm(w, r, http.StatusUnprocessableEntity, item, true, saveError(err))
		return
	}

	slog.Info("post created", "id", created.ID, "slug", created.Slug, "status", created.Status)
	redirect(w, r, "/admin/posts")
}

// PostEdit renders the edit form for any post, drafts included.
func (a *Admin) PostEdit(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findPost(w, r)
	if !ok {
		return
	}
	a.postForm(w, r, http.StatusOK, item, false, "")
}

// PostUpdate replaces a post with the submitted form. The slug is kept
// unless a new one is entered explicitly.
func (a *Admin) PostUpdate(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findPost(w, r)
	if !ok {
		return
	}
	oldCover := item.CoverURL

	postFromForm(r, item)
	if s := strings.TrimSpace(r.FormValue("slug")); s != "" {
		item.Slug = slug.Generate(s)
	}

	if errMsg := validatePost(item); errMsg != "" {
		a.postForm(w, r, http.StatusUnprocessableEntity, item, false, errMsg)
		return
	}

	if _, err := a.posts.Save(r.Context(), item); err != nil {
		slog.Error("update post failed", "error", err, "id", item.ID)
		a.postForm(w, r, http.StatusUnprocessableEntity, item, false, saveError(err))
		return
	}

	a.docs.Invalidate(r.Context(), item.ID)
	if oldCover != "" && oldCover != item.CoverURL {
		a.removeAsset(r.Context(), oldCover)
	}

	slog.Info("post updated", "id", item.ID, "slug", item.Slug, "status", item.Status)
	redirect(w, r, "/admin/posts")
}

// PostDelete removes a post and its cached rendering.
func (a *Admin) PostDelete(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findPost(w, r)
	if !ok {
		return
	}

	if err := a.posts.Delete(r.Context(), item.ID); err != nil {
		slog.Error("delete post failed", "error", err, "id", item.ID)
		http.Error(w, "Failed to delete", http.StatusInternalServerError)
		return
	}
	a.docs.Invalidate(r.Context(), item.ID)
	a.removeAsset(r.Context(), item.CoverURL)

	slog.Info("post deleted", "id", item.ID)
	deleted(w, r, "/admin/posts")
}

// saveError turns a failed post save into a form message.
func saveError(err error) string {
	if errors.Is(err, store.ErrDuplicate) {
		return "Another post already uses this slug."
	}
	return "Failed to save the post."
}

func (a *Admin) findPost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return nil, false
	}
	item, err := a.posts.FindByID(r.Context(), id)
	if err != nil {
		slog.Error("find post failed", "error", err, "id", id)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if item == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil, false
	}
	return item, true
}

func (a *Admin) postForm(w http.ResponseWriter, r *http.Request, status int, item *models.Post, isNew bool, errMsg string) {
	title := "Edit Post"
	if isNew {
		title = "New Post"
	}
	a.renderer.PageStatus(w, r, status, "admin/post_form", &render.PageData{
		Title:   title,
		Section: "posts",
		Data:    map[string]any{"IsNew": isNew, "Item": item, "Error": errMsg},
	})
}

// postFromForm copies the post form fields onto p.
func postFromForm(r *http.Request, p *models.Post) {
	p.Title = strings.TrimSpace(r.FormValue("title"))
	p.About = strings.TrimSpace(r.FormValue("about"))
	p.Author = strings.TrimSpace(r.FormValue("author"))
	p.CoverURL = strings.TrimSpace(r.FormValue("cover_url"))
	p.Content = r.FormValue("content")
	p.Status = models.PostStatus(r.FormValue("status"))
	if p.Status == "" {
		p.Status = models.PostStatusDraft
	}
	p.Date = time.Now().UTC().Truncate(24 * time.Hour)
	if d, err := time.Parse("2006-01-02", r.FormValue("date")); err == nil {
		p.Date = d
	}
}

// slugFromForm normalizes an explicit slug, or derives one from title.
func slugFromForm(explicit, title string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return slug.Generate(s)
	}
	return slug.Generate(title)
}

// --- Projects CRUD ---

// ProjectsList renders every project.
func (a *Admin) ProjectsList(w http.ResponseWriter, r *http.Request) {
	projects, err := a.projects.List(r.Context(), 0, 0)
	if err != nil {
		slog.Error("list projects failed", "error", err)
	}

	a.renderer.Page(w, r, "admin/projects", &render.PageData{
		Title:   "Projects",
		Section: "projects",
		Data:    map[string]any{"Items": projects},
	})
}

// ProjectNew renders the new project form.
func (a *Admin) ProjectNew(w http.ResponseWriter, r *http.Request) {
	a.projectForm(w, r, http.StatusOK, nil, true, "")
}

// ProjectCreate handles the new project form submission.
func (a *Admin) ProjectCreate(w http.ResponseWriter, r *http.Request) {
	item := &models.Project{}
	projectFromForm(r, item)

	if errMsg := validateProject(item); errMsg != "" {
		a.projectForm(w, r, http.StatusUnprocessableEntity, item, true, errMsg)
		return
	}

	created, err := a.projects.Save(r.Context(), item)
	if err != nil {
		slog.Error("create project failed", "error", err)
		item.ID = uuid.Nil
		a.projectForm(w, r, http.StatusUnprocessableEntity, item, true, "Failed to save the project.")
		return
	}

	slog.Info("project created", "id", created.ID)
	redirect(w, r, "/admin/projects")
}

// ProjectEdit renders the edit form for a project.
func (a *Admin) ProjectEdit(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findProject(w, r)
	if !ok {
		return
	}
	a.projectForm(w, r, http.StatusOK, item, false, "")
}

// ProjectUpdate replaces a project with the submitted form.
func (a *Admin) ProjectUpdate(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findProject(w, r)
	if !ok {
		return
	}
	oldImage := item.ImageURL
	projectFromForm(r, item)

	if errMsg := validateProject(item); errMsg != "" {
		a.projectForm(w, r, http.StatusUnprocessableEntity, item, false, errMsg)
		return
	}

	if _, err := a.projects.Save(r.Context(), item); err != nil {
		slog.Error("update project failed", "error", err, "id", item.ID)
		a.projectForm(w, r, http.StatusUnprocessableEntity, item, false, "Failed to save the project.")
		return
	}
	if oldImage != item.ImageURL {
		a.removeAsset(r.Context(), oldImage)
	}

	slog.Info("project updated", "id", item.ID)
	redirect(w, r, "/admin/projects")
}

// ProjectDelete removes a project and its uploaded image.
func (a *Admin) ProjectDelete(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findProject(w, r)
	if !ok {
		return
	}

	if err := a.projects.Delete(r.Context(), item.ID); err != nil {
		slog.Error("delete project failed", "error", err, "id", item.ID)
		http.Error(w, "Failed to delete", http.StatusInternalServerError)
		return
	}
	a.removeAsset(r.Context(), item.ImageURL)

	slog.Info("project deleted", "id", item.ID)
	deleted(w, r, "/admin/projects")
}

func (a *Admin) findProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return nil, false
	}
	item, err := a.projects.FindByID(r.Context(), id)
	if err != nil {
		slog.Error("find project failed", "error", err, "id", id)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if item == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil, false
	}
	return item, true
}

func (a *Admin) projectForm(w http.ResponseWriter, r *http.Request, status int, item *models.Project, isNew bool, errMsg string) {
	title := "Edit Project"
	if isNew {
		title = "New Project"
	}
	a.renderer.PageStatus(w, r, status, "admin/project_form", &render.PageData{
		Title:   title,
		Section: "projects",
		Data:    map[string]any{"IsNew": isNew, "Item": item, "Error": errMsg},
	})
}

func projectFromForm(r *http.Request, p *models.Project) {
	p.Title = strings.TrimSpace(r.FormValue("title"))
	p.Description = strings.TrimSpace(r.FormValue("description"))
	p.ImageURL = strings.TrimSpace(r.FormValue("image_url"))
	p.DemoURL = optionalURL(r.FormValue("demo_url"))
	p.RepoURL = optionalURL(r.FormValue("repo_url"))
}

// --- Skills CRUD ---

// SkillsList renders every skill.
func (a *Admin) SkillsList(w http.ResponseWriter, r *http.Request) {
	skills, err := a.skills.List(r.Context())
	if err != nil {
		slog.Error("list skills failed", "error", err)
	}

	a.renderer.Page(w, r, "admin/skills", &render.PageData{
		Title:   "Skills",
		Section: "skills",
		Data:    map[string]any{"Items": skills},
	})
}

// SkillNew renders the new skill form.
func (a *Admin) SkillNew(w http.ResponseWriter, r *http.Request) {
	a.skillForm(w, r, http.StatusOK, nil, true, "")
}

// SkillCreate handles the new skill form submission.
func (a *Admin) SkillCreate(w http.ResponseWriter, r *http.Request) {
	item := &models.Skill{}
	if errMsg := skillFromForm(r, item); errMsg != "" {
		a.skillForm(w, r, http.StatusUnprocessableEntity, item, true, errMsg)
		return
	}

	created, err := a.skills.Save(r.Context(), item)
	if err != nil {
		slog.Error("create skill failed", "error", err)
		item.ID = uuid.Nil
		a.skillForm(w, r, http.StatusUnprocessableEntity, item, true, "Failed to save the skill.")
		return
	}

	slog.Info("skill created", "id", created.ID, "name", created.Name)
	redirect(w, r, "/admin/skills")
}

// SkillEdit renders the edit form for a skill.
func (a *Admin) SkillEdit(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findSkill(w, r)
	if !ok {
		return
	}
	a.skillForm(w, r, http.StatusOK, item, false, "")
}

// SkillUpdate replaces a skill with the submitted form.
func (a *Admin) SkillUpdate(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findSkill(w, r)
	if !ok {
		return
	}
	if errMsg := skillFromForm(r, item); errMsg != "" {
		a.skillForm(w, r, http.StatusUnprocessableEntity, item, false, errMsg)
		return
	}

	if _, err := a.skills.Save(r.Context(), item); err != nil {
		slog.Error("update skill failed", "error", err, "id", item.ID)
		a.skillForm(w, r, http.StatusUnprocessableEntity, item, false, "Failed to save the skill.")
		return
	}

	slog.Info("skill updated", "id", item.ID)
	redirect(w, r, "/admin/skills")
}

// SkillDelete removes a skill.
func (a *Admin) SkillDelete(w http.ResponseWriter, r *http.Request) {
	item, ok := a.findSkill(w, r)
	if !ok {
		return
	}
	if err := a.skills.Delete(r.Context(), item.ID); err != nil {
		slog.Error("delete skill failed", "error", err, "id", item.ID)
		http.Error(w, "Failed to delete", http.StatusInternalServerError)
		return
	}

	slog.Info("skill deleted", "id", item.ID)
	deleted(w, r, "/admin/skills")
}

func (a *Admin) findSkill(w http.ResponseWriter, r *http.Request) (*models.Skill, bool) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return nil, false
	}
	item, err := a.skills.FindByID(r.Context(), id)
	if err != nil {
		slog.Error("find skill failed", "error", err, "id", id)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if item == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil, false
	}
	return item, true
}

func (a *Admin) skillForm(w http.ResponseWriter, r *http.Request, status int, item *models.Skill, isNew bool, errMsg string) {
	title := "Edit Skill"
	if isNew {
		title = "New Skill"
	}
	a.renderer.PageStatus(w, r, status, "admin/skill_form", &render.PageData{
		Title:   title,
		Section: "skills",
		Data:    map[string]any{"IsNew": isNew, "Item": item, "Error": errMsg},
	})
}

// skillFromForm copies the skill form onto s and validates it.
func skillFromForm(r *http.Request, s *models.Skill) string {
	s.Name = strings.TrimSpace(r.FormValue("name"))
	pct, err := strconv.Atoi(strings.TrimSpace(r.FormValue("percentage")))
	if err != nil {
		return "Percentage must be a whole number."
	}
	s.Percentage = pct
	return validateSkill(s)
}

// --- Settings ---

// SettingsPage renders the per-section settings forms.
func (a *Admin) SettingsPage(w http.ResponseWriter, r *http.Request) {
	a.settingsPage(w, r, http.StatusOK, map[string]any{"Saved": r.URL.Query().Get("saved") == "1"})
}

// SettingsUpdate saves one section's settings and drops the cached copy.
func (a *Admin) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	section := models.Section(chi.URLParam(r, "section"))
	if !knownSection(section) {
		http.Error(w, "Unknown section", http.StatusNotFound)
		return
	}

	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("items_per_page")))
	errMsg := "Items per page must be a whole number."
	if err == nil {
		errMsg = validateItemsPerPage(n)
	}
	if errMsg != "" {
		a.settingsPage(w, r, http.StatusUnprocessableEntity, map[string]any{"Error": errMsg})
		return
	}

	if err := a.settings.Set(r.Context(), section, n); err != nil {
		slog.Error("save settings failed", "error", err, "section", section)
		a.settingsPage(w, r, http.StatusInternalServerError, map[string]any{"Error": "Failed to save settings."})
		return
	}
	a.settingsCache.Invalidate(section)

	slog.Info("settings updated", "section", section, "items_per_page", n)
	redirect(w, r, "/admin/settings?saved=1")
}

func (a *Admin) settingsPage(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	items, err := a.settings.All(r.Context())
	if err != nil {
		slog.Error("load settings failed", "error", err)
	}
	data["Items"] = items

	a.renderer.PageStatus(w, r, status, "admin/settings", &render.PageData{
		Title:   "Settings",
		Section: "settings",
		Data:    data,
	})
}

func knownSection(s models.Section) bool {
	for _, known := range models.Sections {
		if s == known {
			return true
		}
	}
	return false
}

// --- Moderation ---

// Moderation lists every post with its comment and like counts.
func (a *Admin) Moderation(w http.ResponseWriter, r *http.Request) {
	items, err := a.moderator.ModerationSummary(r.Context())
	if err != nil {
		slog.Error("moderation summary failed", "error", err)
	}

	a.renderer.Page(w, r, "admin/moderation", &render.PageData{
		Title:   "Moderation",
		Section: "moderation",
		Data:    map[string]any{"Items": items},
	})
}

// ModerationPost lists the comments on one post for deletion.
func (a *Admin) ModerationPost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "postID"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	post, err := a.posts.FindByID(r.Context(), id)
	if err != nil || post == nil {
		if err != nil {
			slog.Error("find post failed", "error", err, "id", id)
		}
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	comments, err := a.moderator.Comments(r.Context(), id)
	if err != nil {
		slog.Error("list comments failed", "error", err, "post_id", id)
	}

	a.renderer.Page(w, r, "admin/moderation_post", &render.PageData{
		Title:   "Comments",
		Section: "moderation",
		Data:    map[string]any{"Post": post, "Comments": comments},
	})
}

// CommentDelete removes a comment as the admin. HTMX swaps the row out
// with the empty response.
func (a *Admin) CommentDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	var requester gate.Identity
	if id := middleware.SessionFromCtx(r.Context()).Identity(); id != nil {
		requester = *id
	}

	err := a.moderator.DeleteComment(r.Context(), id, requester)
	switch {
	case errors.Is(err, interact.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case errors.Is(err, interact.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	case err != nil:
		slog.Error("delete comment failed", "error", err, "id", id)
		http.Error(w, "Failed to delete", http.StatusInternalServerError)
		return
	}

	slog.Info("comment deleted by admin", "id", id)
	w.WriteHeader(http.StatusOK)
}

// --- Uploads ---

// Upload stores an image from the "file" multipart field and answers with
// its public URL. The admin forms copy the URL into a cover or image field.
func (a *Admin) Upload(w http.ResponseWriter, r *http.Request) {
	if a.assets == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Uploads are not configured.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxAssetSize+1024)
	if err := r.ParseMultipartForm(storage.MaxAssetSize); err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10 MB.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No file provided.")
		return
	}
	defer file.Close()

	asset, err := a.assets.Put(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		writeJSONError(w, http.StatusUnsupportedMediaType, "Only JPEG, PNG, GIF and WebP images are accepted.")
		return
	case errors.Is(err, storage.ErrTooLarge):
		writeJSONError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10 MB.")
		return
	case err != nil:
		slog.Error("upload failed", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusInternalServerError, "Upload failed.")
		return
	}

	slog.Info("asset uploaded", "key", asset.Key, "size", asset.Size)
	writeJSON(w, http.StatusCreated, asset)
}

// removeAsset deletes an uploaded file that is no longer referenced.
// URLs outside the bucket are ignored.
func (a *Admin) removeAsset(ctx context.Context, url string) {
	if a.assets == nil || url == "" {
		return
	}
	if err := a.assets.Remove(ctx, url); err != nil {
		slog.Warn("asset cleanup failed", "url", url, "error", err)
	}
}

// deleted answers a delete: HTMX gets an empty 200 so the row is swapped
// out; plain requests are redirected to the list.
func deleted(w http.ResponseWriter, r *http.Request, list string) {
	if isHTMX(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, list, http.StatusSeeOther)
}
