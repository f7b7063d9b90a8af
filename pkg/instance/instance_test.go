package instance

import "testing"

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("CHECKOUT_WORKER_ID", "publisher-7")
	if got := GetID(); got != "publisher-7" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("CHECKOUT_WORKER_ID", "")
	if got := GetID(); got == "" {
		t.Fatal("expected a non-empty id")
	}
}
