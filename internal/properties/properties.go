// Package properties reads Minecraft server.properties files. The
// format is the Java properties subset the vanilla server writes: one
// key=value pair per line, # and ! comment lines, no line
// continuations or unicode escapes.
package properties

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// File holds the parsed key/value pairs of a server.properties file.
type File struct {
	values map[string]string
}

// Load reads and parses the properties file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("properties: read %s: %w", path, err)
	}
	return &File{values: values}, nil
}

// Get returns the raw value for key and whether it was present.
func (f *File) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// GetString returns the value for key, or fallback if absent.
func (f *File) GetString(key, fallback string) string {
	if v, ok := f.values[key]; ok {
		return v
	}
	return fallback
}

// GetInt returns the value for key parsed as an integer, or fallback
// if the key is absent or not a number.
func (f *File) GetInt(key string, fallback int) int {
	v, ok := f.values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GetBool returns the value for key parsed as a boolean, or fallback
// if the key is absent or not "true"/"false".
func (f *File) GetBool(key string, fallback bool) bool {
	v, ok := f.values[key]
	if !ok {
		return fallback
	}
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	return fallback
}

// RconEnabled reports whether the server has RCON turned on.
func (f *File) RconEnabled() bool {
	return f.GetBool("enable-rcon", false)
}

// RconPort returns the configured RCON port (default 25575).
func (f *File) RconPort() int {
	return f.GetInt("rcon.port", 25575)
}

// RconPassword returns the configured RCON password.
func (f *File) RconPassword() string {
	return f.GetString("rcon.password", "")
}

// ServerPort returns the game port (default 25565).
func (f *File) ServerPort() int {
	return f.GetInt("server-port", 25565)
}

// QueryPort returns the UDP query port (default 25565).
func (f *File) QueryPort() int {
	return f.GetInt("query.port", 25565)
}

// MaxPlayers returns the configured player cap (default 20).
func (f *File) MaxPlayers() int {
	return f.GetInt("max-players", 20)
}
