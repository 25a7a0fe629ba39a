package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testOptions struct {
	Config       string
	RconHost     string   `toml:"rcon.host" env:"RCON_HOST"`
	RconPort     int      `toml:"rcon.port" env:"RCON_PORT"`
	Debug        bool     `toml:"debug" env:"DEBUG"`
	RequiredFile []string `toml:"server.required-files" env:"REQUIRED_FILES"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "craftwatch.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FromTOML(t *testing.T) {
	path := writeConfig(t, `
debug = true

[rcon]
host = "10.0.0.5"
port = 25580

[server]
required-files = ["server.jar", "eula.txt"]
`)

	opts := testOptions{Config: path, RconHost: "localhost", RconPort: 25575}
	if err := Load(&opts, nil); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if opts.RconHost != "10.0.0.5" {
		t.Errorf("RconHost = %q, want 10.0.0.5", opts.RconHost)
	}
	if opts.RconPort != 25580 {
		t.Errorf("RconPort = %d, want 25580", opts.RconPort)
	}
	if !opts.Debug {
		t.Error("Debug = false, want true")
	}
	if len(opts.RequiredFile) != 2 || opts.RequiredFile[0] != "server.jar" {
		t.Errorf("RequiredFile = %v", opts.RequiredFile)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[rcon]\nhost = \"from-file\"\n")
	t.Setenv("CRAFTWATCH_RCON_HOST", "from-env")
	t.Setenv("CRAFTWATCH_RCON_PORT", "25581")

	opts := testOptions{Config: path}
	if err := Load(&opts, nil); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if opts.RconHost != "from-env" {
		t.Errorf("RconHost = %q, env must beat file", opts.RconHost)
	}
	if opts.RconPort != 25581 {
		t.Errorf("RconPort = %d, want env value 25581", opts.RconPort)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	opts := testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), RconHost: "default"}
	if err := Load(&opts, nil); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if opts.RconHost != "default" {
		t.Errorf("RconHost = %q, want untouched default", opts.RconHost)
	}
}

func TestLoad_BadTOML(t *testing.T) {
	path := writeConfig(t, "not [valid toml")
	opts := testOptions{Config: path}
	if err := Load(&opts, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":         "port",
		"RconPassword": "rcon-password",
		"LoggingLevel": "logging-level",
	}
	for name, want := range tests {
		if got := fieldNameToFlag(name); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
rcon = "warn"
supervisor = "debug"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("level/format = %s/%s, want debug/json", cfg.Level, cfg.Format)
	}
	if cfg.Modules["rcon"] != "warn" {
		t.Errorf("module levels = %v", cfg.Modules)
	}
}

func TestLoadLoggingConfig_Defaults(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %s/%s, want info/text", cfg.Level, cfg.Format)
	}
}
