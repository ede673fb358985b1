package version

import "testing"

func TestDefaults(t *testing.T) {
	if Version != "dev" {
		t.Errorf("default Version = %q, want %q", Version, "dev")
	}
	if GitCommit != "unknown" {
		t.Errorf("default GitCommit = %q, want %q", GitCommit, "unknown")
	}
	if BuildDate != "unknown" {
		t.Errorf("default BuildDate = %q, want %q", BuildDate, "unknown")
	}
}

func TestInfo(t *testing.T) {
	if s := Info(); s == "" {
		t.Error("Info() should return non-empty string")
	}
}

func TestInfoWithBuildMetadata(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	defer func() { Version = old }()

	if s := Info(); s == "dev build" {
		t.Errorf("Info() should reflect non-dev Version, got %q", s)
	}
}
