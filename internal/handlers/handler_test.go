// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Stores, sessions and mail are in-memory fakes; the identity and
// interaction services are the real ones running on top of them.
package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"folio/internal/cache"
	"folio/internal/gate"
	"folio/internal/identity"
	"folio/internal/interact"
	"folio/internal/live"
	"folio/internal/mail"
	"folio/internal/markdown"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/render"
	"folio/internal/session"
	"folio/internal/storage"
	"folio/internal/store"
)

const testAdminEmail = "owner@folio.local"

// window applies store-style paging: limit <= 0 returns everything after
// offset.
func window[T any](s []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s) {
		return nil
	}
	s = s[offset:]
	if limit > 0 && limit < len(s) {
		s = s[:limit]
	}
	return s
}

// --- posts ---

type memPosts struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Post
}

func newMemPosts() *memPosts {
	return &memPosts{items: make(map[uuid.UUID]*models.Post)}
}

func (m *memPosts) sorted(filter func(*models.Post) bool) []models.Post {
	var out []models.Post
	for _, p := range m.items {
		if filter == nil || filter(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (m *memPosts) List(context.Context) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(nil), nil
}

func (m *memPosts) ListPublished(_ context.Context, limit, offset int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return window(m.sorted(func(p *models.Post) bool { return p.IsPublished() }), limit, offset), nil
}

func (m *memPosts) CountPublished(ctx context.Context) (int, error) {
	all, _ := m.ListPublished(ctx, 0, 0)
	return len(all), nil
}

func (m *memPosts) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *memPosts) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *memPosts) FindPublishedBySlug(_ context.Context, slug string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.Slug == slug && p.IsPublished() {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memPosts) Save(_ context.Context, p *models.Post) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.items {
		if other.Slug == p.Slug && id != p.ID {
			return nil, fmt.Errorf("save post: %w", store.ErrDuplicate)
		}
	}
	now := time.Now()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	c := *p
	m.items[p.ID] = &c
	return p, nil
}

func (m *memPosts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// --- projects and skills ---

type memProjects struct {
	mu    sync.Mutex
	items []models.Project
}

func (m *memProjects) List(_ context.Context, limit, offset int) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return window(append([]models.Project(nil), m.items...), limit, offset), nil
}

func (m *memProjects) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *memProjects) FindByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memProjects) Save(_ context.Context, p *models.Project) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
		m.items = append(m.items, *p)
		return p, nil
	}
	for i := range m.items {
		if m.items[i].ID == p.ID {
			m.items[i] = *p
		}
	}
	return p, nil
}

func (m *memProjects) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	return nil
}

type memSkills struct {
	mu    sync.Mutex
	items []models.Skill
}

func (m *memSkills) List(context.Context) ([]models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Skill(nil), m.items...), nil
}

func (m *memSkills) FindByID(_ context.Context, id uuid.UUID) (*models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.items {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, nil
}

func (m *memSkills) Save(_ context.Context, s *models.Skill) (*models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
		m.items = append(m.items, *s)
		return s, nil
	}
	for i := range m.items {
		if m.items[i].ID == s.ID {
			m.items[i] = *s
		}
	}
	return s, nil
}

func (m *memSkills) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	return nil
}

// --- settings ---

type memSettings struct {
	mu    sync.Mutex
	items map[models.Section]int
	reads int
}

func newMemSettings() *memSettings {
	return &memSettings{items: make(map[models.Section]int)}
}

func (m *memSettings) Get(_ context.Context, section models.Section) (models.SectionSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	n, ok := m.items[section]
	if !ok {
		return models.DefaultSettings(section), nil
	}
	return models.SectionSettings{Section: section, ItemsPerPage: n}, nil
}

func (m *memSettings) All(ctx context.Context) ([]models.SectionSettings, error) {
	var out []models.SectionSettings
	for _, s := range models.Sections {
		settings, _ := m.Get(ctx, s)
		out = append(out, settings)
	}
	return out, nil
}

func (m *memSettings) Set(_ context.Context, section models.Section, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[section] = n
	return nil
}

// --- render cache ---

type memDocs struct {
	mu          sync.Mutex
	docs        map[string]markdown.Document
	invalidated []uuid.UUID
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]markdown.Document)}
}

func (m *memDocs) Get(_ context.Context, postID uuid.UUID, version time.Time) (*markdown.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[cache.RenderKey(postID, version)]
	if !ok {
		return nil, false
	}
	return &d, true
}

func (m *memDocs) Set(_ context.Context, postID uuid.UUID, version time.Time, doc markdown.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[cache.RenderKey(postID, version)] = doc
}

func (m *memDocs) Invalidate(_ context.Context, postID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, postID)
}

// --- interactions ---

type memComments struct {
	mu    sync.Mutex
	items []models.Comment
}

func (m *memComments) ListByPost(_ context.Context, postID uuid.UUID) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Comment
	for _, c := range m.items {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memComments) ListAll(context.Context) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Comment(nil), m.items...), nil
}

func (m *memComments) FindByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memComments) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	m.items = append(m.items, *c)
	return c, nil
}

func (m *memComments) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memComments) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

type memLikes struct {
	mu    sync.Mutex
	items []models.Like
}

func (m *memLikes) ListByPost(_ context.Context, postID uuid.UUID) ([]models.Like, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Like
	for _, l := range m.items {
		if l.PostID == postID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLikes) ListAll(context.Context) ([]models.Like, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Like(nil), m.items...), nil
}

func (m *memLikes) FindByPostAndUser(_ context.Context, postID, userID uuid.UUID) ([]models.Like, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Like
	for _, l := range m.items {
		if l.PostID == postID && l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLikes) Create(_ context.Context, postID, userID uuid.UUID) (*models.Like, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := models.Like{ID: uuid.New(), PostID: postID, UserID: userID, CreatedAt: time.Now()}
	m.items = append(m.items, l)
	return &l, nil
}

func (m *memLikes) Delete(_ context.Context, ids ...uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.items[:0]
	for _, l := range m.items {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	m.items = kept
	return nil
}

func (m *memLikes) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

// --- users and sessions ---

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uuid.UUID]*models.User)}
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *memUsers) Create(_ context.Context, email, password, displayName string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: uuid.New(), Email: email, PasswordHash: string(hash), DisplayName: displayName, CreatedAt: time.Now()}
	m.byID[u.ID] = u
	c := *u
	return &c, nil
}

func (m *memUsers) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (m *memUsers) SetEmailVerified(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.EmailVerified = true
	}
	return nil
}

func (m *memUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.TOTPSecret = &secret
	}
	return nil
}

func (m *memUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.TOTPEnabled = true
	}
	return nil
}

// fakeSessions records the session lifecycle instead of talking to Valkey.
type fakeSessions struct {
	mu        sync.Mutex
	created   []*session.Data
	updated   []*session.Data
	destroyed int
}

func (f *fakeSessions) Create(_ context.Context, w http.ResponseWriter, data *session.Data) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *data
	f.created = append(f.created, &c)
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "test-session", Path: "/"})
	return "test-session", nil
}

func (f *fakeSessions) Update(_ context.Context, _ *http.Request, data *session.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *data
	f.updated = append(f.updated, &c)
	return nil
}

func (f *fakeSessions) Destroy(context.Context, http.ResponseWriter, *http.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return nil
}

func (f *fakeSessions) last() *session.Data {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

// --- mail and assets ---

type recordingMailer struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (r *recordingMailer) Dispatch(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingMailer) sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.msgs...)
}

type fakeAssets struct {
	mu      sync.Mutex
	put     []string
	removed []string
	err     error
}

func (f *fakeAssets) Put(_ context.Context, filename string, r io.Reader) (*storage.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.put = append(f.put, filename)
	key := "assets/2026/03/" + filename
	return &storage.Asset{Key: key, URL: "https://cdn.example.com/" + key, Size: int64(len(data)), ContentType: "image/png"}, nil
}

func (f *fakeAssets) Remove(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
	return nil
}

// --- environment ---

// testEnv holds the handler groups wired to fakes.
type testEnv struct {
	posts    *memPosts
	projects *memProjects
	skills   *memSkills
	settings *memSettings
	docs     *memDocs
	comments *memComments
	likes    *memLikes
	users    *memUsers
	sessions *fakeSessions
	mailer   *recordingMailer
	assets   *fakeAssets

	accounts *identity.Service
	interact *interact.Service
	gate     *middleware.Gate

	public *Public
	auth   *Auth
	admin  *Admin
	api    *API
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	adminIdentity := gate.AdminIdentity{Email: testAdminEmail}
	renderer, err := render.New(false, adminIdentity)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := live.NewHub(live.NewMemoryBus())
	hub.Start(ctx)

	env := &testEnv{
		posts:    newMemPosts(),
		projects: &memProjects{},
		skills:   &memSkills{},
		settings: newMemSettings(),
		docs:     newMemDocs(),
		comments: &memComments{},
		likes:    &memLikes{},
		users:    newMemUsers(),
		sessions: &fakeSessions{},
		mailer:   &recordingMailer{},
		assets:   &fakeAssets{},
	}
	env.accounts = identity.NewService(env.users, identity.NewTokens("test-secret"), "folio")
	env.interact = interact.NewService(env.posts, env.comments, env.likes, hub, adminIdentity)
	env.gate = middleware.NewGate(adminIdentity, env.users, env.sessions)

	settingsCache := cache.NewSettingsCache(time.Minute)
	env.public = NewPublic(renderer, env.posts, env.projects, env.skills, env.settings, settingsCache, env.docs, env.interact, env.mailer, testAdminEmail)
	env.auth = NewAuth(renderer, env.accounts, env.users, env.sessions, env.mailer, "https://folio.test")
	env.admin = NewAdmin(renderer, env.posts, env.projects, env.skills, env.settings, settingsCache, env.interact, env.comments, env.likes, env.docs, env.assets)
	env.api = NewAPI(env.interact, env.posts)
	return env
}

// serve runs h behind the gate for kind on a one-route chi router, so URL
// parameters and the gate state reach the handler as in production.
func (env *testEnv) serve(kind gate.RouteKind, method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.With(env.gate.Require(kind)).Method(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// serveJSON is serve with the JSON flavor of the gate.
func (env *testEnv) serveJSON(kind gate.RouteKind, method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.With(env.gate.RequireJSON(kind)).Method(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// addUser stores a user with the given password and verification state.
func (env *testEnv) addUser(t *testing.T, email, name string, verified bool) *models.User {
	t.Helper()
	u, err := env.users.Create(context.Background(), email, "correct-horse", name)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if verified {
		env.users.SetEmailVerified(context.Background(), u.ID)
		u.EmailVerified = true
	}
	return u
}

// addPost stores a post and returns it.
func (env *testEnv) addPost(t *testing.T, title, slug string, status models.PostStatus) *models.Post {
	t.Helper()
	p, err := env.posts.Save(context.Background(), &models.Post{
		Title:   title,
		Slug:    slug,
		Author:  "Ada",
		Date:    time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Content: "Hello **world**",
		Status:  status,
	})
	if err != nil {
		t.Fatalf("save post: %v", err)
	}
	return p
}

// sessionFor builds the session a signed-in user would carry.
func sessionFor(u *models.User) *session.Data {
	return &session.Data{
		UserID:        u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		CreatedAt:     time.Now(),
	}
}

// newRequest builds a request carrying sess (nil for anonymous visitors).
func newRequest(method, target string, body io.Reader, sess *session.Data) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if sess != nil {
		req = req.WithContext(middleware.WithSession(req.Context(), sess))
	}
	return req
}

// formRequest builds a url-encoded POST request.
func formRequest(target string, form url.Values, sess *session.Data) *http.Request {
	req := newRequest(http.MethodPost, target, strings.NewReader(form.Encode()), sess)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
