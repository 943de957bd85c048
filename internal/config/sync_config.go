package config

import (
	"github.com/jrsteele09/go-chatter-roster/internal/utils"
	"github.com/jrsteele09/go-chatter-roster/transform"
)

type SyncConfig interface {
	GetClientID() string
	GetBroadcasterID() string
	GetModeratorID() string
	GetEnoughChatters() int
	GetDisplayNameTransforms() []transform.Rule
	GetHelixBaseURL() string
}

// GetBroadcasterID returns the configured broadcaster id, "" meaning "look up
// the authenticated user".
func (c *mainConfig) GetBroadcasterID() string {
	return utils.Value(c.settings.BroadcasterID)
}

// GetModeratorID returns the configured moderator id, "" meaning "same as the
// broadcaster".
func (c *mainConfig) GetModeratorID() string {
	return utils.Value(c.settings.ModeratorID)
}

func (c *mainConfig) GetEnoughChatters() int {
	return *c.settings.EnoughChatters
}

func (c *mainConfig) GetDisplayNameTransforms() []transform.Rule {
	return c.transforms
}
