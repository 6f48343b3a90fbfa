package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/queryowl/queryowl/internal/models"
)

func TestClassifyDialError(t *testing.T) {
	refused := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}

	tests := []struct {
		name string
		err  error
		want models.ConnFailureKind
	}{
		{"bad password", &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}, models.ConnFailureAuth},
		{"auth spec", &pgconn.PgError{Code: "28000", Message: "no pg_hba.conf entry"}, models.ConnFailureAuth},
		{"missing database", &pgconn.PgError{Code: "3D000", Message: `database "nope" does not exist`}, models.ConnFailureDatabase},
		{"too many connections", &pgconn.PgError{Code: "53300", Message: "too many connections"}, models.ConnFailureUnreachable},
		{"refused", refused, models.ConnFailureUnreachable},
		{"wrapped refused", fmt.Errorf("dialing: %w", refused), models.ConnFailureUnreachable},
		{"dns", &net.DNSError{Err: "no such host", Name: "db.nowhere"}, models.ConnFailureUnreachable},
		{"deadline", context.DeadlineExceeded, models.ConnFailureTimeout},
		{"wrapped deadline", fmt.Errorf("connect: %w", context.DeadlineExceeded), models.ConnFailureTimeout},
		{"ssl disabled", errors.New("server refused TLS connection"), models.ConnFailureTLS},
		{"x509", errors.New("x509: certificate signed by unknown authority"), models.ConnFailureTLS},
		{"unknown", errors.New("something odd"), models.ConnFailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyDialError(tt.err, "localhost", 5432)
			if got.Kind != tt.want {
				t.Errorf("kind = %q, want %q", got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("original error no longer reachable via errors.Is")
			}
		})
	}
}
