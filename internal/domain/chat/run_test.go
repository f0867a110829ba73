package chat

import (
	"strings"
	"testing"
	"time"
)

func TestRunStatusTerminal(t *testing.T) {
	cases := map[RunStatus]bool{
		RunQueued:         false,
		RunInProgress:     false,
		RunRequiresAction: false,
		RunCompleted:      true,
		RunFailed:         true,
		RunCancelled:      true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Fatalf("%s.Terminal(): got=%v want=%v", status, got, want)
		}
	}
}

func TestNormalizeRunStatus(t *testing.T) {
	cases := map[string]RunStatus{
		"queued":     RunQueued,
		"completed":  RunCompleted,
		"expired":    RunFailed,
		"incomplete": RunFailed,
		"cancelling": RunInProgress,
		"canceled":   RunCancelled,
		"brand_new":  RunInProgress,
	}
	for raw, want := range cases {
		if got := NormalizeRunStatus(raw); got != want {
			t.Fatalf("NormalizeRunStatus(%q): got=%s want=%s", raw, got, want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleAdmin, RoleSystem} {
		if !r.Valid() {
			t.Fatalf("%s should be valid", r)
		}
	}
	if Role("tool").Valid() {
		t.Fatalf("tool should not be a valid role")
	}
}

func TestDefaultTitleIsTimestamped(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC)
	got := DefaultTitle(now)
	if !strings.HasPrefix(got, DefaultTitlePrefix) || !strings.HasSuffix(got, "2026-03-04 05:06") {
		t.Fatalf("unexpected default title: %q", got)
	}
}
