package envutil

import (
	"testing"
	"time"
)

func TestEnvParsingFallsBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_MS", "-5")
	t.Setenv("X_LIST", " a, ,b ")

	if got := Int("X_INT", 7); got != 7 {
		t.Fatalf("Int: got=%d want=7", got)
	}
	if got := Bool("X_BOOL", true); !got {
		t.Fatalf("Bool: expected default true")
	}
	if got := Millis("X_MS", time.Second); got != time.Second {
		t.Fatalf("Millis: got=%s", got)
	}
	list := List("X_LIST", nil)
	if len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Fatalf("List: got=%v", list)
	}
	if got := String("X_MISSING_VALUE", "def"); got != "def" {
		t.Fatalf("String: got=%q", got)
	}
}

func TestEnvParsingReadsValues(t *testing.T) {
	t.Setenv("X_MS", "250")
	t.Setenv("X_S", "3")
	t.Setenv("X_BOOL", "off")
	t.Setenv("X_F", "0.25")

	if got := Millis("X_MS", time.Second); got != 250*time.Millisecond {
		t.Fatalf("Millis: got=%s", got)
	}
	if got := Seconds("X_S", time.Minute); got != 3*time.Second {
		t.Fatalf("Seconds: got=%s", got)
	}
	if Bool("X_BOOL", true) {
		t.Fatalf("Bool: expected false")
	}
	if got := Float("X_F", 1); got != 0.25 {
		t.Fatalf("Float: got=%v", got)
	}
}
