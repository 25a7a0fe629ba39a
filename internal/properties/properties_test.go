package properties

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProps(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.properties")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeProps(t, `#Minecraft server properties
#Thu Aug 28 10:00:00 UTC 2026
enable-rcon=true
rcon.port=25575
rcon.password=hunter2
server-port=25565
query.port=25565
max-players=20
motd=A Minecraft Server
level-name = world
!ignored=line
malformed line without equals
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !f.RconEnabled() {
		t.Error("RconEnabled() = false, want true")
	}
	if got := f.RconPort(); got != 25575 {
		t.Errorf("RconPort() = %d, want 25575", got)
	}
	if got := f.RconPassword(); got != "hunter2" {
		t.Errorf("RconPassword() = %q, want hunter2", got)
	}
	if got := f.ServerPort(); got != 25565 {
		t.Errorf("ServerPort() = %d, want 25565", got)
	}
	if got := f.MaxPlayers(); got != 20 {
		t.Errorf("MaxPlayers() = %d, want 20", got)
	}

	// Whitespace around the separator is trimmed.
	if got := f.GetString("level-name", ""); got != "world" {
		t.Errorf("level-name = %q, want world", got)
	}

	// Comment and malformed lines are skipped.
	if _, ok := f.Get("!ignored"); ok {
		t.Error("comment line should not produce a key")
	}
	if _, ok := f.Get("malformed line without equals"); ok {
		t.Error("line without separator should be skipped")
	}
}

func TestLoadDefaults(t *testing.T) {
	f, err := Load(writeProps(t, "motd=hello\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if f.RconEnabled() {
		t.Error("RconEnabled() = true, want default false")
	}
	if got := f.RconPort(); got != 25575 {
		t.Errorf("RconPort() default = %d, want 25575", got)
	}
	if got := f.QueryPort(); got != 25565 {
		t.Errorf("QueryPort() default = %d, want 25565", got)
	}
	if got := f.GetInt("max-players", 20); got != 20 {
		t.Errorf("max-players default = %d, want 20", got)
	}
}

func TestLoadBadValues(t *testing.T) {
	f, err := Load(writeProps(t, "rcon.port=notaport\nenable-rcon=maybe\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := f.RconPort(); got != 25575 {
		t.Errorf("unparsable port should fall back, got %d", got)
	}
	if f.RconEnabled() {
		t.Error("unparsable bool should fall back to false")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.properties")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
