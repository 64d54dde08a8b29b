package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"folio/internal/models"
)

// DefaultSettingsTTL bounds how stale an in-process settings entry may be
// when another instance updated the row.
const DefaultSettingsTTL = 1 * time.Minute

// SettingsCache keeps section settings in process memory. List pages read
// them on every request and they change rarely.
type SettingsCache struct {
	c *gocache.Cache
}

// NewSettingsCache creates an in-process cache with the given TTL.
func NewSettingsCache(ttl time.Duration) *SettingsCache {
	if ttl == 0 {
		ttl = DefaultSettingsTTL
	}
	return &SettingsCache{c: gocache.New(ttl, 2*ttl)}
}

// Get returns cached settings for a section.
func (s *SettingsCache) Get(section models.Section) (models.SectionSettings, bool) {
	v, ok := s.c.Get(string(section))
	if !ok {
		return models.SectionSettings{}, false
	}
	settings, ok := v.(models.SectionSettings)
	return settings, ok
}

// Set stores settings for a section with the default expiration.
func (s *SettingsCache) Set(settings models.SectionSettings) {
	s.c.Set(string(settings.Section), settings, gocache.DefaultExpiration)
}

// Invalidate drops a section so the next read goes to the database.
func (s *SettingsCache) Invalidate(section models.Section) {
	s.c.Delete(string(section))
}
