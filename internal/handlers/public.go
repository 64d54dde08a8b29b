// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"folio/internal/cache"
	"folio/internal/gate"
	"folio/internal/mail"
	"folio/internal/markdown"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/render"
)

// homeItems is how many posts and projects the homepage previews.
const homeItems = 3

// InteractionReader loads the initial interaction snapshot for a post
// page. *interact.Service implements it.
type InteractionReader interface {
	Likes(ctx context.Context, postID uuid.UUID) ([]models.Like, error)
	Comments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
}

// Public groups handlers for the public site: the portfolio pages, the
// blog and the contact form.
type Public struct {
	renderer     *render.Renderer
	posts        PostRepository
	projects     ProjectRepository
	skills       SkillRepository
	settings     sectionSettings
	docs         DocumentCache
	interactions InteractionReader
	mailer       mail.Dispatcher
	contactTo    string
}

// NewPublic creates the Public handler group. Contact messages are sent
// to contactTo.
func NewPublic(renderer *render.Renderer, posts PostRepository, projects ProjectRepository, skills SkillRepository, settingStore SettingRepository, settingsCache *cache.SettingsCache, docs DocumentCache, interactions InteractionReader, mailer mail.Dispatcher, contactTo string) *Public {
	return &Public{
		renderer:     renderer,
		posts:        posts,
		projects:     projects,
		skills:       skills,
		settings:     sectionSettings{store: settingStore, cache: settingsCache},
		docs:         docs,
		interactions: interactions,
		mailer:       mailer,
		contactTo:    contactTo,
	}
}

// Home renders the landing page with the latest posts and projects.
func (p *Public) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	posts, err := p.posts.ListPublished(ctx, homeItems, 0)
	if err != nil {
		slog.Error("list latest posts failed", "error", err)
	}
	projects, err := p.projects.List(ctx, homeItems, 0)
	if err != nil {
		slog.Error("list latest projects failed", "error", err)
	}

	p.renderer.Page(w, r, "site/home", &render.PageData{
		Description: "Portfolio and blog",
		Section:     "home",
		Data: map[string]any{
			"Posts":    posts,
			"Projects": projects,
		},
	})
}

// About renders the about page, which includes the skill list.
func (p *Public) About(w http.ResponseWriter, r *http.Request) {
	skills, err := p.skills.List(r.Context())
	if err != nil {
		slog.Error("list skills failed", "error", err)
	}

	p.renderer.Page(w, r, "site/about", &render.PageData{
		Title:   "About",
		Section: "about",
		Data:    map[string]any{"Skills": skills},
	})
}

// Skills renders the skills page.
func (p *Public) Skills(w http.ResponseWriter, r *http.Request) {
	skills, err := p.skills.List(r.Context())
	if err != nil {
		slog.Error("list skills failed", "error", err)
	}

	p.renderer.Page(w, r, "site/skills", &render.PageData{
		Title:   "Skills",
		Section: "skills",
		Data:    map[string]any{"Skills": skills},
	})
}

// Projects renders one page of the portfolio.
func (p *Public) Projects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	perPage := p.settings.itemsPerPage(ctx, models.SectionProjects)

	total, err := p.projects.Count(ctx)
	if err != nil {
		slog.Error("count projects failed", "error", err)
		p.serverError(w, r)
		return
	}
	pg := paginate(pageParam(r), total, perPage)

	projects, err := p.projects.List(ctx, perPage, pg.Offset(perPage))
	if err != nil {
		slog.Error("list projects failed", "error", err, "page", pg.Page)
		p.serverError(w, r)
		return
	}

	p.renderer.Page(w, r, "site/projects", &render.PageData{
		Title:   "Projects",
		Section: "projects",
		Data: map[string]any{
			"Projects":   projects,
			"Pagination": pg,
		},
	})
}

// Blog renders one page of published posts, newest first.
func (p *Public) Blog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	perPage := p.settings.itemsPerPage(ctx, models.SectionPosts)

	total, err := p.posts.CountPublished(ctx)
	if err != nil {
		slog.Error("count published posts failed", "error", err)
		p.serverError(w, r)
		return
	}
	pg := paginate(pageParam(r), total, perPage)

	posts, err := p.posts.ListPublished(ctx, perPage, pg.Offset(perPage))
	if err != nil {
		slog.Error("list published posts failed", "error", err, "page", pg.Page)
		p.serverError(w, r)
		return
	}

	p.renderer.Page(w, r, "site/blog", &render.PageData{
		Title:   "Blog",
		Section: "blog",
		Data: map[string]any{
			"Posts":      posts,
			"Pagination": pg,
		},
	})
}

// Post renders a published post with its rendered markdown and the
// initial interaction snapshot. Drafts are not found.
func (p *Public) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slugParam := chi.URLParam(r, "slug")

	post, err := p.posts.FindPublishedBySlug(ctx, slugParam)
	if err != nil {
		slog.Error("find post by slug failed", "error", err, "slug", slugParam)
		p.serverError(w, r)
		return
	}
	if post == nil {
		p.NotFound(w, r)
		return
	}

	doc := p.document(ctx, post)

	likes, err := p.interactions.Likes(ctx, post.ID)
	if err != nil {
		slog.Error("load likes failed", "error", err, "post_id", post.ID)
	}
	comments, err := p.interactions.Comments(ctx, post.ID)
	if err != nil {
		slog.Error("load comments failed", "error", err, "post_id", post.ID)
	}

	state := middleware.StateFromCtx(ctx)
	sess := middleware.SessionFromCtx(ctx)
	liked := false
	if sess != nil {
		liked = likedBy(likes, sess.UserID)
	}

	p.renderer.Page(w, r, "site/post", &render.PageData{
		Title:       post.Title,
		Description: post.About,
		Section:     "blog",
		Data: map[string]any{
			"Post":           post,
			"HTML":           template.HTML(doc.HTML), // produced by the markdown pipeline, raw HTML disabled
			"TOC":            doc.TOC,
			"ReadingMinutes": doc.ReadingMinutes,
			"Degraded":       doc.Degraded,
			"CanInteract":    state == gate.VerifiedUser || state == gate.VerifiedAdmin,
			"Liked":          liked,
			"LikeCount":      len(likes),
			"Comments":       comments,
		},
	})
}

// document returns the rendered body of post, using the render cache
// keyed by the post's last update.
func (p *Public) document(ctx context.Context, post *models.Post) markdown.Document {
	if doc, ok := p.docs.Get(ctx, post.ID, post.UpdatedAt); ok {
		return *doc
	}

	doc := markdown.Render(post.Content)
	if doc.Degraded {
		slog.Warn("markdown render degraded", "post_id", post.ID, "error", doc.Err)
	}
	p.docs.Set(ctx, post.ID, post.UpdatedAt, doc)
	return doc
}

// ContactPage renders the contact form.
func (p *Public) ContactPage(w http.ResponseWriter, r *http.Request) {
	p.renderer.Page(w, r, "site/contact", &render.PageData{
		Title:   "Contact",
		Section: "contact",
	})
}

// ContactSubmit validates the contact form and queues the message for the
// site owner. Delivery happens in the background.
func (p *Public) ContactSubmit(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	message := strings.TrimSpace(r.FormValue("message"))

	data := map[string]any{"Name": name, "Email": email, "Message": message}

	if errMsg := validateContact(name, email, message); errMsg != "" {
		data["Error"] = errMsg
		p.renderer.PageStatus(w, r, http.StatusUnprocessableEntity, "site/contact", &render.PageData{
			Title:   "Contact",
			Section: "contact",
			Data:    data,
		})
		return
	}

	err := p.mailer.Dispatch(r.Context(), mail.Message{
		To:       p.contactTo,
		Template: mail.TemplateContact,
		Data:     map[string]string{"Name": name, "Email": email, "Message": message},
	})
	if err != nil {
		slog.Error("contact dispatch failed", "error", err)
		data["Error"] = "Your message could not be sent. Please try again later."
		p.renderer.PageStatus(w, r, http.StatusServiceUnavailable, "site/contact", &render.PageData{
			Title:   "Contact",
			Section: "contact",
			Data:    data,
		})
		return
	}

	slog.Info("contact message accepted", "from", email)
	p.renderer.Page(w, r, "site/contact", &render.PageData{
		Title:   "Contact",
		Section: "contact",
		Data:    map[string]any{"Sent": true},
	})
}

// AccessDenied is where verified non-admins land when they open an admin
// route.
func (p *Public) AccessDenied(w http.ResponseWriter, r *http.Request) {
	p.renderer.PageStatus(w, r, http.StatusForbidden, "site/access_denied", &render.PageData{
		Title: "Access denied",
	})
}

// NotFound renders the 404 page.
func (p *Public) NotFound(w http.ResponseWriter, r *http.Request) {
	p.renderer.PageStatus(w, r, http.StatusNotFound, "site/not_found", &render.PageData{
		Title: "Not found",
	})
}

func (p *Public) serverError(w http.ResponseWriter, r *http.Request) {
	p.renderer.PageStatus(w, r, http.StatusInternalServerError, "site/error", &render.PageData{
		Title: "Something went wrong",
		Data:  map[string]any{"Message": "The page could not be loaded. Please try again in a moment."},
	})
}

// likedBy reports whether userID appears in likes.
func likedBy(likes []models.Like, userID uuid.UUID) bool {
	for _, l := range likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}
