package process

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	sv, err := New(Config{SpillRoot: t.TempDir(), Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	return sv
}

func TestSpawnForegroundExit(t *testing.T) {
	sv := newTestSupervisor(t)

	res, err := sv.Spawn(context.Background(), SpawnRequest{
		Argv:               []string{"/bin/echo", "hello"},
		Cwd:                "/",
		ForegroundDeadline: 2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Backgrounded {
		t.Fatal("expected echo to exit before the deadline")
	}
	if res.ExitStatus != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitStatus)
	}
	if !strings.Contains(string(res.CapturedStdout), "hello") {
		t.Fatalf("expected captured stdout to contain hello, got %q", res.CapturedStdout)
	}
	if res.Session.State() != StateExited {
		t.Fatalf("expected StateExited, got %s", res.Session.State())
	}
}

func TestSpawnAutoBackgrounds(t *testing.T) {
	sv := newTestSupervisor(t)

	res, err := sv.Spawn(context.Background(), SpawnRequest{
		Argv:               []string{"/bin/sleep", "2"},
		Cwd:                "/",
		ForegroundDeadline: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Backgrounded {
		t.Fatal("expected sleep to be backgrounded before exit")
	}
	if res.Session.State() != StateBackgrounded {
		t.Fatalf("expected StateBackgrounded, got %s", res.Session.State())
	}

	_ = sv.Signal(res.Session.ID, "kill")
	res.Session.Wait(context.Background())
}

func TestSignalUnknownSessionNotFound(t *testing.T) {
	sv := newTestSupervisor(t)
	err := sv.Signal("sess_does_not_exist", "terminate")
	ce, ok := coreerrors.AsCoreError(err)
	if !ok || ce.Kind != coreerrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestReapRunningSessionFails(t *testing.T) {
	sv := newTestSupervisor(t)
	res, err := sv.Spawn(context.Background(), SpawnRequest{
		Argv:               []string{"/bin/sleep", "2"},
		Cwd:                "/",
		ForegroundDeadline: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = sv.Reap(res.Session.ID)
	if ce, ok := coreerrors.AsCoreError(err); !ok || ce.Kind != coreerrors.InvalidArguments {
		t.Fatalf("expected InvalidArguments for reaping a live session, got %v", err)
	}

	_ = sv.Signal(res.Session.ID, "kill")
	res.Session.Wait(context.Background())

	if err := sv.Reap(res.Session.ID); err != nil {
		t.Fatalf("expected reap to succeed after exit, got %v", err)
	}

	_, err = sv.Get(res.Session.ID)
	if ce, ok := coreerrors.AsCoreError(err); !ok || ce.Kind != coreerrors.NotFound {
		t.Fatalf("expected NotFound after reap, got %v", err)
	}
}

func TestResolveSessionByGlob(t *testing.T) {
	sv := newTestSupervisor(t)
	res, err := sv.Spawn(context.Background(), SpawnRequest{
		Argv:               []string{"/bin/echo", "unique-marker-xyz"},
		Cwd:                "/",
		ForegroundDeadline: 2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	found, err := sv.ResolveSession("*unique-marker-xyz*")
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != res.Session.ID {
		t.Fatalf("expected to resolve to %s, got %s", res.Session.ID, found.ID)
	}
}
