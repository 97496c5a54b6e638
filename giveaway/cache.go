package giveaway

import (
	"sync"
	"time"

	"giveaway-bot/model"
	"giveaway-bot/utils/database"

	"github.com/jmoiron/sqlx"
)

// SettingsCache is a load-through cache for per-guild giveaway settings.
// Settings change rarely but are read on every lifecycle announcement, so
// entries are kept for a TTL and refetched lazily.
type SettingsCache struct {
	db  *sqlx.DB
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]settingsEntry
}

type settingsEntry struct {
	settings *model.GuildSettings
	fetched  time.Time
}

func NewSettingsCache(db *sqlx.DB, ttl time.Duration) *SettingsCache {
	return &SettingsCache{
		db:      db,
		ttl:     ttl,
		entries: make(map[string]settingsEntry),
	}
}

// Get returns the guild's settings, from cache when fresh.
func (c *SettingsCache) Get(guildID string) (*model.GuildSettings, error) {
	c.mu.RLock()
	entry, ok := c.entries[guildID]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetched) < c.ttl {
		return entry.settings, nil
	}

	settings, err := database.GetGuildSettings(c.db, guildID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[guildID] = settingsEntry{settings: settings, fetched: time.Now()}
	c.mu.Unlock()
	return settings, nil
}

// Save persists the settings and refreshes the cached entry.
func (c *SettingsCache) Save(settings *model.GuildSettings) error {
	if err := database.UpsertGuildSettings(c.db, settings); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[settings.GuildID] = settingsEntry{settings: settings, fetched: time.Now()}
	c.mu.Unlock()
	return nil
}

// Invalidate drops a guild's cached entry so the next Get refetches.
func (c *SettingsCache) Invalidate(guildID string) {
	c.mu.Lock()
	delete(c.entries, guildID)
	c.mu.Unlock()
}

// EvictExpired drops stale entries. Runs on a schedule to keep the map from
// accumulating guilds the bot no longer serves.
func (c *SettingsCache) EvictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-c.ttl)
	for guildID, entry := range c.entries {
		if entry.fetched.Before(cutoff) {
			delete(c.entries, guildID)
		}
	}
}
