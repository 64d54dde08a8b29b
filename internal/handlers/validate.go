package handlers

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"folio/internal/models"
)

// Validation limits for admin and contact form fields.
const (
	maxTitleLen       = 300
	maxSlugLen        = 300
	maxContentLen     = 100_000
	maxAboutLen       = 1_000
	maxAuthorLen      = 120
	maxDescriptionLen = 5_000
	maxURLLen         = 2_000
	maxSkillNameLen   = 80
	maxNameLen        = 120
	maxMessageLen     = 5_000
)

// validatePost checks post form inputs and returns the first error found.
func validatePost(p *models.Post) string {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return "Title is required."
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "Title is too long (max 300 characters)."
	}
	if p.Slug == "" {
		return "Title must contain letters or digits, or enter a slug."
	}
	if utf8.RuneCountInString(p.Slug) > maxSlugLen {
		return "Slug is too long (max 300 characters)."
	}
	if utf8.RuneCountInString(p.Content) > maxContentLen {
		return "Content is too long (max 100,000 characters)."
	}
	if utf8.RuneCountInString(p.About) > maxAboutLen {
		return "Summary is too long (max 1,000 characters)."
	}
	if utf8.RuneCountInString(p.Author) > maxAuthorLen {
		return "Author is too long (max 120 characters)."
	}
	if !p.Status.Valid() {
		return "Status must be draft or published."
	}
	if p.CoverURL != "" && !validHTTPURL(p.CoverURL) {
		return "Cover image must be an http(s) URL."
	}
	return ""
}

// validateProject checks project form inputs.
func validateProject(p *models.Project) string {
	if strings.TrimSpace(p.Title) == "" {
		return "Title is required."
	}
	if utf8.RuneCountInString(p.Title) > maxTitleLen {
		return "Title is too long (max 300 characters)."
	}
	if strings.TrimSpace(p.Description) == "" {
		return "Description is required."
	}
	if utf8.RuneCountInString(p.Description) > maxDescriptionLen {
		return "Description is too long (max 5,000 characters)."
	}
	if strings.TrimSpace(p.ImageURL) == "" {
		return "Image is required."
	}
	if !validHTTPURL(p.ImageURL) {
		return "Image must be an http(s) URL."
	}
	if !p.HasLink() {
		return "Add a demo link or a repository link."
	}
	for _, u := range []*string{p.DemoURL, p.RepoURL} {
		if u != nil && *u != "" && !validHTTPURL(*u) {
			return "Links must be http(s) URLs."
		}
	}
	return ""
}

// validateSkill checks skill form inputs.
func validateSkill(s *models.Skill) string {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return "Name is required."
	}
	if utf8.RuneCountInString(name) > maxSkillNameLen {
		return "Name is too long (max 80 characters)."
	}
	if s.Percentage < 0 || s.Percentage > 100 {
		return "Percentage must be between 0 and 100."
	}
	return ""
}

// validateItemsPerPage checks a section settings value.
func validateItemsPerPage(n int) string {
	if n < 1 || n > models.MaxItemsPerPage {
		return "Items per page must be between 1 and 50."
	}
	return ""
}

// validateContact checks the public contact form.
func validateContact(name, email, message string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Please tell me your name."
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "Name is too long (max 120 characters)."
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return "Please enter a valid email address."
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "Message is required."
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		return "Message is too long (max 5,000 characters)."
	}
	return ""
}

// validHTTPURL reports whether s is an absolute http or https URL.
func validHTTPURL(s string) bool {
	if len(s) > maxURLLen {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// optionalURL returns nil for an empty form value.
func optionalURL(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
