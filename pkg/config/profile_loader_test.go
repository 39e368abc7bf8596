package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, "profile_"+name+".yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadProfile_OverlaysRateLimitAndApproval(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "staging", `
name: staging
store:
  max_open_conns: 10
  max_idle_conns: 5
  conn_max_life_minutes: 30
rate_limit:
  api_window_seconds: 60
  api_max: 200
  unauth_window_seconds: 60
  unauth_max: 20
approval:
  max_pending_per_agent: 25
  enrollment_ttl_minutes: 10
`)

	p, err := LoadProfile(dir, "staging")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Store.MaxOpenConns != 10 {
		t.Errorf("expected max_open_conns 10, got %d", p.Store.MaxOpenConns)
	}
	if p.RateLimit.APIMax != 200 {
		t.Errorf("expected api_max 200, got %d", p.RateLimit.APIMax)
	}
	if p.Approval.MaxPendingPerAgent != 25 {
		t.Errorf("expected max_pending_per_agent 25, got %d", p.Approval.MaxPendingPerAgent)
	}
}

func TestLoadProfile_NameDefaultsFromFilename(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "prod", "store:\n  max_open_conns: 50\n")

	p, err := LoadProfile(dir, "prod")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Name != "prod" {
		t.Errorf("expected name defaulted to 'prod', got %q", p.Name)
	}
}

func TestLoadAllProfiles(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "dev", "store:\n  max_open_conns: 2\n")
	writeProfile(t, dir, "prod", "store:\n  max_open_conns: 50\n")

	profiles, err := LoadAllProfiles(dir)
	if err != nil {
		t.Fatalf("LoadAllProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles["dev"].Store.MaxOpenConns != 2 {
		t.Errorf("unexpected dev profile: %+v", profiles["dev"])
	}
	if profiles["prod"].Store.MaxOpenConns != 50 {
		t.Errorf("unexpected prod profile: %+v", profiles["prod"])
	}
}

func TestLoadProfile_MissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadProfile(dir, "missing"); err == nil {
		t.Fatal("expected an error for a nonexistent profile")
	}
}
