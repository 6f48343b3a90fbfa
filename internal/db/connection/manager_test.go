package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/queryowl/queryowl/internal/models"
)

func fakeDial(session *Session, err error) dialFunc {
	return func(_ context.Context, conn models.Connection, _ string, _ PoolLimits) (*Session, error) {
		if err != nil {
			return nil, err
		}
		s := *session
		s.conn = conn.Redacted()
		return &s, nil
	}
}

func testConn(id string) models.Connection {
	return models.Connection{
		ID:       id,
		Name:     "test " + id,
		Host:     "localhost",
		Port:     5432,
		Database: "app",
		Username: "dev",
	}
}

func TestActivateInstallsSession(t *testing.T) {
	m := NewManager(PoolLimits{})
	m.dial = fakeDial(&Session{}, nil)

	s, err := m.Activate(context.Background(), testConn("c1"), "pw")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if s.ID() != "c1" {
		t.Errorf("session id = %q", s.ID())
	}
	if m.Current() != s {
		t.Error("current is not the activated session")
	}
}

func TestActivateReplacesPrevious(t *testing.T) {
	m := NewManager(PoolLimits{})
	m.dial = fakeDial(&Session{}, nil)

	if _, err := m.Activate(context.Background(), testConn("c1"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Activate(context.Background(), testConn("c2"), ""); err != nil {
		t.Fatal(err)
	}

	if got := m.Current().ID(); got != "c2" {
		t.Errorf("current = %q, want c2", got)
	}
	if _, err := m.SessionFor("c1"); err == nil {
		t.Error("old id still resolves after replacement")
	}
}

func TestActivateFailureLeavesNoSession(t *testing.T) {
	m := NewManager(PoolLimits{})
	m.dial = fakeDial(&Session{}, nil)

	if _, err := m.Activate(context.Background(), testConn("c1"), ""); err != nil {
		t.Fatal(err)
	}

	dialErr := &models.ConnectionError{Kind: models.ConnFailureAuth, Err: errors.New("bad password")}
	m.dial = fakeDial(nil, dialErr)

	_, err := m.Activate(context.Background(), testConn("c2"), "wrong")
	var connErr *models.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want ConnectionError", err)
	}
	if m.Current() != nil {
		t.Error("failed activation left a session live")
	}
}

func TestDeactivateIdempotent(t *testing.T) {
	m := NewManager(PoolLimits{})
	m.dial = fakeDial(&Session{}, nil)

	m.Deactivate() // nothing live yet

	if _, err := m.Activate(context.Background(), testConn("c1"), ""); err != nil {
		t.Fatal(err)
	}
	m.Deactivate()
	if m.Current() != nil {
		t.Error("session survived deactivate")
	}
	m.Deactivate() // second call is a no-op
}

func TestSessionFor(t *testing.T) {
	m := NewManager(PoolLimits{})

	_, err := m.SessionFor("c1")
	var noActive *models.NoActiveConnectionError
	if !errors.As(err, &noActive) {
		t.Fatalf("err = %v, want NoActiveConnectionError", err)
	}
	if noActive.Requested != "c1" {
		t.Errorf("requested = %q", noActive.Requested)
	}

	m.dial = fakeDial(&Session{}, nil)
	if _, err := m.Activate(context.Background(), testConn("c1"), ""); err != nil {
		t.Fatal(err)
	}

	if _, err := m.SessionFor("c1"); err != nil {
		t.Errorf("matching id rejected: %v", err)
	}

	_, err = m.SessionFor("stale")
	if !errors.As(err, &noActive) {
		t.Fatalf("err = %v, want NoActiveConnectionError", err)
	}
	if noActive.Active != "c1" {
		t.Errorf("active = %q, want c1", noActive.Active)
	}
}
