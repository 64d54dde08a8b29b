package handlers

import (
	"strings"
	"testing"

	"folio/internal/models"
)

func TestValidatePost(t *testing.T) {
	tests := []struct {
		name      string
		post      models.Post
		wantError bool
	}{
		{"valid", models.Post{Title: "My Title", Slug: "my-title", Content: "Body", Status: models.PostStatusDraft}, false},
		{"empty content allowed", models.Post{Title: "t", Slug: "t", Status: models.PostStatusPublished}, false},
		{"empty title", models.Post{Title: "", Status: models.PostStatusDraft}, true},
		{"whitespace title", models.Post{Title: "   ", Status: models.PostStatusDraft}, true},
		{"title too long", models.Post{Title: strings.Repeat("a", 301), Status: models.PostStatusDraft}, true},
		{"title at limit", models.Post{Title: strings.Repeat("é", 300), Slug: strings.Repeat("e", 300), Status: models.PostStatusDraft}, false},
		{"slug too long", models.Post{Title: "t", Slug: strings.Repeat("a", 301), Status: models.PostStatusDraft}, true},
		{"content too long", models.Post{Title: "t", Content: strings.Repeat("a", 100_001), Status: models.PostStatusDraft}, true},
		{"about too long", models.Post{Title: "t", About: strings.Repeat("a", 1001), Status: models.PostStatusDraft}, true},
		{"no usable slug", models.Post{Title: "!!! ???", Slug: "", Status: models.PostStatusDraft}, true},
		{"unknown status", models.Post{Title: "t", Status: "archived"}, true},
		{"bad cover", models.Post{Title: "t", CoverURL: "javascript:alert(1)", Status: models.PostStatusDraft}, true},
		{"good cover", models.Post{Title: "t", Slug: "t", CoverURL: "https://cdn.example.com/a.png", Status: models.PostStatusDraft}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validatePost(&tt.post)
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}

func TestValidateProject(t *testing.T) {
	demo := "https://demo.example.com"
	repo := "https://github.com/example/repo"
	ftp := "ftp://example.com/x"
	empty := ""

	valid := func() models.Project {
		return models.Project{Title: "App", Description: "Does things", ImageURL: "https://cdn.example.com/a.png", DemoURL: &demo}
	}

	tests := []struct {
		name      string
		mutate    func(p *models.Project)
		wantError bool
	}{
		{"valid demo only", func(p *models.Project) {}, false},
		{"valid repo only", func(p *models.Project) { p.DemoURL = nil; p.RepoURL = &repo }, false},
		{"no links", func(p *models.Project) { p.DemoURL = nil }, true},
		{"empty link strings", func(p *models.Project) { p.DemoURL = &empty; p.RepoURL = &empty }, true},
		{"missing title", func(p *models.Project) { p.Title = " " }, true},
		{"missing description", func(p *models.Project) { p.Description = "" }, true},
		{"missing image", func(p *models.Project) { p.ImageURL = "" }, true},
		{"relative image", func(p *models.Project) { p.ImageURL = "/img.png" }, true},
		{"non-http link", func(p *models.Project) { p.RepoURL = &ftp }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			result := validateProject(&p)
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}

func TestValidateSkill(t *testing.T) {
	tests := []struct {
		name      string
		skill     models.Skill
		wantError bool
	}{
		{"valid", models.Skill{Name: "Go", Percentage: 90}, false},
		{"zero percent", models.Skill{Name: "COBOL", Percentage: 0}, false},
		{"hundred percent", models.Skill{Name: "Go", Percentage: 100}, false},
		{"negative", models.Skill{Name: "Go", Percentage: -1}, true},
		{"over hundred", models.Skill{Name: "Go", Percentage: 101}, true},
		{"empty name", models.Skill{Name: "  ", Percentage: 50}, true},
		{"name too long", models.Skill{Name: strings.Repeat("a", 81), Percentage: 50}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateSkill(&tt.skill)
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}

func TestValidateItemsPerPage(t *testing.T) {
	for _, n := range []int{1, 6, 50} {
		if msg := validateItemsPerPage(n); msg != "" {
			t.Errorf("validateItemsPerPage(%d) = %q, want no error", n, msg)
		}
	}
	for _, n := range []int{0, -3, 51} {
		if validateItemsPerPage(n) == "" {
			t.Errorf("validateItemsPerPage(%d) should fail", n)
		}
	}
}

func TestValidateContact(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		email     string
		message   string
		wantError bool
	}{
		{"valid", "Ada", "ada@example.com", "Hello there", false},
		{"named address", "Ada", "Ada <ada@example.com>", "Hello", false},
		{"missing name", "", "ada@example.com", "Hello", true},
		{"bad email", "Ada", "not-an-email", "Hello", true},
		{"empty email", "Ada", "", "Hello", true},
		{"empty message", "Ada", "ada@example.com", "   ", true},
		{"message too long", "Ada", "ada@example.com", strings.Repeat("a", 5001), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateContact(tt.from, tt.email, tt.message)
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}

func TestValidHTTPURL(t *testing.T) {
	for _, u := range []string{"http://example.com", "https://example.com/a?b=c"} {
		if !validHTTPURL(u) {
			t.Errorf("validHTTPURL(%q) = false, want true", u)
		}
	}
	for _, u := range []string{"", "example.com", "mailto:a@b.c", "https://", "javascript:alert(1)", "https://x.com/" + strings.Repeat("a", maxURLLen)} {
		if validHTTPURL(u) {
			t.Errorf("validHTTPURL(%q) = true, want false", u)
		}
	}
}
