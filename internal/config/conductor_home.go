package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetConductorHome returns the conductor home directory
// Priority order:
//   1. CONDUCTOR_HOME environment variable (if set)
//   2. Conductor repository root (detected by finding go.mod)
//   3. Current working directory (fallback)
// The directory is created if it doesn't exist
func GetConductorHome() (string, error) {
	// Try env var first
	if home := os.Getenv("CONDUCTOR_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create conductor home directory: %w", err)
		}
		return home, nil
	}

	// Try to find conductor repo root by looking for go.mod
	repoRoot, err := findConductorRepoRoot()
	if err == nil && repoRoot != "" {
		conductorHome := filepath.Join(repoRoot, ".conductor")
		// Ensure directory exists
		if err := os.MkdirAll(conductorHome, 0755); err != nil {
			return "", fmt.Errorf("create conductor home directory: %w", err)
		}
		return conductorHome, nil
	}

	// Fallback to current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	conductorHome := filepath.Join(cwd, ".conductor")

	// Ensure directory exists
	if err := os.MkdirAll(conductorHome, 0755); err != nil {
		return "", fmt.Errorf("create conductor home directory: %w", err)
	}

	return conductorHome, nil
}

// findConductorRepoRoot finds the conductor repository root by looking for
// go.mod containing the conductor module path, or a .conductor-root marker
func findConductorRepoRoot() (string, error) {
	// Start from current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		// First check for .conductor-root marker file (highest priority)
		markerPath := filepath.Join(current, ".conductor-root")
		if _, err := os.Stat(markerPath); err == nil {
			return current, nil
		}

		// Check for go.mod with conductor module path
		goModPath := filepath.Join(current, "go.mod")
		if data, err := os.ReadFile(goModPath); err == nil {
			// Check if this go.mod contains the conductor module path
			if strings.Contains(string(data), "github.com/harrison/conductor") {
				return current, nil
			}
		}

		// Move up one directory
		parent := filepath.Dir(current)
		if parent == current {
			// Reached filesystem root
			break
		}
		current = parent
	}

	return "", fmt.Errorf("conductor repository root not found (looking for .conductor-root or go.mod with github.com/harrison/conductor)")
}

// GetStoreDBPath returns the absolute path to the coordination store database.
// Always returns: $CONDUCTOR_HOME/coordination/state.db
func GetStoreDBPath() (string, error) {
	home, err := GetConductorHome()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "coordination", "state.db"), nil
}

// GetCoordinationDir returns the coordination directory path, creating it if
// it doesn't already exist.
func GetCoordinationDir() (string, error) {
	home, err := GetConductorHome()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, "coordination")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create coordination directory: %w", err)
	}

	return dir, nil
}
