package ring

import "testing"

func TestConfig_ZeroValueIsUsable(t *testing.T) {
	var cfg Config
	if cfg.SQDepth != 0 || cfg.CQDepth != 0 {
		t.Fatal("expected zero-value Config to have zero depths")
	}
}

func TestFences_DoNotPanic(t *testing.T) {
	Sfence()
	Mfence()
}
