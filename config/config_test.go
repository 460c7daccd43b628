package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.ServerConfig.Port != 5320 {
		t.Errorf("Expected default port 5320, got %d", cfg.ServerConfig.Port)
	}
	if cfg.MenuConfig.Source != MenuSourceBuiltin {
		t.Errorf("Expected builtin menu source, got %s", cfg.MenuConfig.Source)
	}
	if !cfg.MockConfig.Enabled {
		t.Error("Expected mock backend to be enabled without a database")
	}
	if cfg.MenuConfig.CacheTTL != 10*time.Minute {
		t.Errorf("Expected cache TTL 10m, got %s", cfg.MenuConfig.CacheTTL)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"server": {"port": 9000},
		"menu": {"source": "file", "catalog_path": "menus.yaml", "validate": true}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("WEB_PORT", "9100")
	t.Setenv("MENU_CACHE_TTL", "30s")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.ServerConfig.Port != 9100 {
		t.Errorf("Expected env port 9100, got %d", cfg.ServerConfig.Port)
	}
	if cfg.MenuConfig.Source != MenuSourceFile || cfg.MenuConfig.CatalogPath != "menus.yaml" {
		t.Errorf("Expected file source with menus.yaml, got %s %s", cfg.MenuConfig.Source, cfg.MenuConfig.CatalogPath)
	}
	if !cfg.MenuConfig.Validate {
		t.Error("Expected validate to be read from file")
	}
	if cfg.MenuConfig.CacheTTL != 30*time.Second {
		t.Errorf("Expected cache TTL 30s, got %s", cfg.MenuConfig.CacheTTL)
	}
}

func TestValidateRejectsBadCombinations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"file source without path", map[string]string{"MENU_SOURCE": "file"}},
		{"postgres source without database", map[string]string{"MENU_SOURCE": "postgres"}},
		{"unknown source", map[string]string{"MENU_SOURCE": "etcd"}},
		{"no backend", map[string]string{"MOCK_ENABLED": "false"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFrom(filepath.Join(t.TempDir(), "none.json")); err == nil {
				t.Error("Expected an error, got nil")
			}
		})
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("Expected parse error for malformed config")
	}
}
