package models

import (
	"time"
)

// Connection is a stored PostgreSQL connection profile. The Secret field holds
// the AES-GCM sealed password (base64) and is never written to the wire; use
// Redacted for anything that leaves the process.
type Connection struct {
	ID              string     `yaml:"id" json:"id"`
	Name            string     `yaml:"name" json:"name"`
	Host            string     `yaml:"host" json:"host"`
	Port            int        `yaml:"port" json:"port"`
	Database        string     `yaml:"database" json:"database"`
	Username        string     `yaml:"username" json:"username"`
	Secret          string     `yaml:"secret" json:"-"`
	SSLMode         string     `yaml:"ssl_mode" json:"sslMode"`
	Color           string     `yaml:"color,omitempty" json:"color,omitempty"`
	CreatedAt       time.Time  `yaml:"created_at" json:"createdAt"`
	LastConnectedAt *time.Time `yaml:"last_connected_at,omitempty" json:"lastConnectedAt,omitempty"`
}

// Redacted returns a copy safe for listings: the sealed secret is dropped but
// HasSecret tells the UI whether one is on file.
func (c Connection) Redacted() Connection {
	c.Secret = ""
	return c
}

// HasSecret reports whether a secret is stored for this connection.
func (c Connection) HasSecret() bool {
	return c.Secret != ""
}

// Validate checks the fields required to dial. Secret is checked only when
// requireSecret is set (creation requires one, updates may omit it to keep the
// stored value).
func (c Connection) Validate(requireSecret bool) error {
	switch {
	case c.Name == "":
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	case c.Host == "":
		return &ValidationError{Field: "host", Reason: "must not be empty"}
	case c.Port < 1 || c.Port > 65535:
		return &ValidationError{Field: "port", Reason: "must be between 1 and 65535"}
	case c.Database == "":
		return &ValidationError{Field: "database", Reason: "must not be empty"}
	case c.Username == "":
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	case requireSecret && c.Secret == "":
		return &ValidationError{Field: "secret", Reason: "must not be empty"}
	}
	return nil
}

// ServerParams identify a PostgreSQL server (not a particular database) for
// server-level operations such as listing or creating databases. Secret is the
// plaintext password, already unsealed by the caller.
type ServerParams struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Secret   string `json:"-"`
	SSLMode  string `json:"sslMode"`
}

// SSLModeFor maps the UI's boolean SSL toggle onto a libpq sslmode.
func SSLModeFor(ssl bool) string {
	if ssl {
		return "require"
	}
	return "disable"
}
