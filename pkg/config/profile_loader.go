package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeploymentProfile is an optional YAML overlay tuning the knobs that
// differ between environments without recompiling: connection pool
// sizing, rate limit windows, and the approval/enrollment constants that
// otherwise fall back to fixed defaults (DefaultMaxPending,
// ratelimit.DefaultAPIConfig, and so on).
type DeploymentProfile struct {
	Name string `yaml:"name" json:"name"`

	Store      StorePoolConfig   `yaml:"store" json:"store"`
	RateLimit  RateLimitOverlay  `yaml:"rate_limit" json:"rate_limit"`
	Approval   ApprovalOverlay   `yaml:"approval" json:"approval"`
}

// StorePoolConfig overlays pkg/store.Config's pool sizing.
type StorePoolConfig struct {
	MaxOpenConns    int `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifeMins int `yaml:"conn_max_life_minutes" json:"conn_max_life_minutes"`
}

// RateLimitOverlay overlays pkg/ratelimit's default windows.
type RateLimitOverlay struct {
	APIWindowSeconds    int `yaml:"api_window_seconds" json:"api_window_seconds"`
	APIMax              int `yaml:"api_max" json:"api_max"`
	UnauthWindowSeconds int `yaml:"unauth_window_seconds" json:"unauth_window_seconds"`
	UnauthMax           int `yaml:"unauth_max" json:"unauth_max"`
}

// ApprovalOverlay overlays pkg/approval's pending-request cap and the
// bootstrap enrollment session TTL.
type ApprovalOverlay struct {
	MaxPendingPerAgent  int `yaml:"max_pending_per_agent" json:"max_pending_per_agent"`
	EnrollmentTTLMins   int `yaml:"enrollment_ttl_minutes" json:"enrollment_ttl_minutes"`
}

// LoadProfile loads a deployment profile YAML by name, searching
// profilesDir for profile_<name>.yaml.
func LoadProfile(profilesDir, name string) (*DeploymentProfile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var profile DeploymentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}
	if profile.Name == "" {
		profile.Name = name
	}
	return &profile, nil
}

// LoadAllProfiles loads every profile_*.yaml in profilesDir, keyed by
// profile name.
func LoadAllProfiles(profilesDir string) (map[string]*DeploymentProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*DeploymentProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var profile DeploymentProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Name == "" {
			base := filepath.Base(path)
			profile.Name = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.Name] = &profile
	}
	return profiles, nil
}
