package connections

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgpassfile"
)

// lookupPgpass finds a password in ~/.pgpass (or PGPASSFILE) for the given
// coordinates. Returns "" when there is no passfile or no matching line;
// wildcard fields match the way libpq defines them.
func lookupPgpass(host string, port int, database, user string) string {
	path := os.Getenv("PGPASSFILE")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path = filepath.Join(home, ".pgpass")
	}

	passfile, err := pgpassfile.ReadPassfile(path)
	if err != nil {
		return ""
	}
	return passfile.FindPassword(host, strconv.Itoa(port), database, user)
}
