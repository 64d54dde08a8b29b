package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// SeedAdminEmail is the development admin account created by Seed.
const SeedAdminEmail = "admin@folio.local"

// Seed populates the database with initial development data: a verified
// admin account, one published post, one draft, a project and some skills.
// It does nothing if any user exists.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO users (email, password_hash, display_name, email_verified)
		VALUES ($1, $2, $3, TRUE)
	`, SeedAdminEmail, string(hash), "Admin"); err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO posts (title, slug, about, author, content, status) VALUES
		($1, $2, $3, 'Admin', $4, 'published'),
		($5, $6, $7, 'Admin', $8, 'draft')
	`,
		"Hello World", "hello-world", "The first post on this site.",
		"## Welcome\n\nThis post was created by the development seed.\n\n```go\nfmt.Println(\"hello\")\n```\n",
		"Work In Progress", "work-in-progress", "A draft that is not public yet.",
		"## Notes\n\nNothing to see here.\n",
	); err != nil {
		return fmt.Errorf("seed insert posts: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO projects (title, description, image_url, repo_url)
		VALUES ($1, $2, $3, $4)
	`, "folio", "This portfolio and blog.", "https://placehold.co/600x400", "https://example.com/folio"); err != nil {
		return fmt.Errorf("seed insert project: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO skills (name, percentage) VALUES ('Go', 90), ('PostgreSQL', 80), ('TypeScript', 70)
	`); err != nil {
		return fmt.Errorf("seed insert skills: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"email", SeedAdminEmail,
		"password", "admin",
	)

	return nil
}
