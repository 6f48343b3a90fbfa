package connection

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/queryowl/queryowl/internal/models"
)

// SQLSTATE classes seen during authentication and startup.
const (
	codeInvalidPassword  = "28P01"
	codeInvalidAuthSpec  = "28000"
	codeInvalidCatalog   = "3D000"
	codeTooManyConns     = "53300"
	codeCannotConnectNow = "57P03"
)

// classifyDialError maps a failed connection attempt onto the error taxonomy
// so the UI can phrase auth failures, unreachable hosts and TLS problems
// differently. The original error stays wrapped for the log.
func classifyDialError(err error, host string, port int) *models.ConnectionError {
	kind := models.ConnFailureUnknown

	var pgErr *pgconn.PgError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = models.ConnFailureTimeout

	case errors.As(err, &pgErr):
		switch pgErr.Code {
		case codeInvalidPassword, codeInvalidAuthSpec:
			kind = models.ConnFailureAuth
		case codeInvalidCatalog:
			kind = models.ConnFailureDatabase
		case codeTooManyConns, codeCannotConnectNow:
			kind = models.ConnFailureUnreachable
		}

	case isTLSError(err):
		kind = models.ConnFailureTLS

	case errors.As(err, &netErr):
		if netErr.Timeout() {
			kind = models.ConnFailureTimeout
		} else {
			kind = models.ConnFailureUnreachable
		}
	}

	return &models.ConnectionError{
		Kind: kind,
		Host: host,
		Port: port,
		Err:  err,
	}
}

func isTLSError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "tls:") ||
		strings.Contains(msg, "x509:") ||
		strings.Contains(msg, "SSL is not enabled") ||
		strings.Contains(msg, "server refused TLS")
}
