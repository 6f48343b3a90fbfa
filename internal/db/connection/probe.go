package connection

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/queryowl/queryowl/internal/models"
)

const probeTimeout = 10 * time.Second

// Probe dials conn once, runs a version round trip and closes. It never
// touches the live-session slot, so testing credentials cannot disturb
// whatever the user is connected to. Returns the server version string.
func Probe(ctx context.Context, conn models.Connection, secretText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	c, err := pgx.Connect(ctx, buildConnString(conn, secretText))
	if err != nil {
		return "", classifyDialError(err, conn.Host, conn.Port)
	}
	defer c.Close(context.Background())

	var version string
	if err := c.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", classifyDialError(err, conn.Host, conn.Port)
	}
	return version, nil
}
