package models

import (
	"time"
)

// Favorite is a saved SQL snippet. ConnectionID is advisory; a favorite can
// be run against any connection.
type Favorite struct {
	ID           string     `yaml:"id" json:"id"`
	Name         string     `yaml:"name" json:"name"`
	Description  string     `yaml:"description,omitempty" json:"description,omitempty"`
	SQL          string     `yaml:"sql" json:"sql"`
	Tags         []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	ConnectionID string     `yaml:"connection_id,omitempty" json:"connectionId,omitempty"`
	CreatedAt    time.Time  `yaml:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `yaml:"updated_at" json:"updatedAt"`
	LastUsedAt   *time.Time `yaml:"last_used_at,omitempty" json:"lastUsedAt,omitempty"`
	UsageCount   int        `yaml:"usage_count" json:"usageCount"`
}
