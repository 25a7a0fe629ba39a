package rcon

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/craftops/craftwatch/internal/logging"
)

// Outcome classifies a convenience-operation result. FalsePositive marks
// the known server quirk where a command replies with an error-shaped
// line yet still performed the action.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFalsePositive
	OutcomeFailed
)

// Result is the explicit result variant for manager convenience
// operations, so callers never infer success from response text.
type Result struct {
	Outcome  Outcome
	Response string
	Err      error
}

// Succeeded reports whether the command took effect, quirks included.
func (r Result) Succeeded() bool {
	return r.Outcome != OutcomeFailed
}

// PlayerStatus is the payload extracted from a "list" response.
type PlayerStatus struct {
	Players    int
	MaxPlayers int
	Names      []string
}

// Manager is the process-wide pool of RCON clients, at most one per
// endpoint address. The manager lock guards only map mutation; in-flight
// command execution is serialized by each client's own lock.
type Manager struct {
	mu      sync.Mutex
	clients map[string]*Client
	opts    *ClientOptions
	logger  *slog.Logger
}

// NewManager creates an empty connection pool. opts applies to every
// client the pool constructs; nil means defaults.
func NewManager(opts *ClientOptions) *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		opts:    opts,
		logger:  logging.GetLogger("rcon"),
	}
}

// GetConnection returns the pooled client for the endpoint, constructing
// an unauthenticated one on first use.
func (m *Manager) GetConnection(endpoint Endpoint) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := endpoint.Addr()
	if client, ok := m.clients[key]; ok {
		return client
	}

	client := NewClient(endpoint, m.opts)
	m.clients[key] = client
	return client
}

// ForceReconnect discards any pooled client for the endpoint and
// connects a fresh one.
func (m *Manager) ForceReconnect(endpoint Endpoint) error {
	key := endpoint.Addr()

	m.mu.Lock()
	if old, ok := m.clients[key]; ok {
		old.Disconnect()
		delete(m.clients, key)
	}
	client := NewClient(endpoint, m.opts)
	m.clients[key] = client
	m.mu.Unlock()

	if _, err := client.Connect(); err != nil {
		return err
	}
	m.logger.Info("RCON reconnected", "addr", key)
	return nil
}

// DisconnectAll disconnects and clears every pooled client.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, client := range m.clients {
		client.Disconnect()
		delete(m.clients, key)
	}
	m.logger.Info("All RCON connections closed")
}

// TestConnection verifies the endpoint accepts the configured password
// by issuing a harmless "list".
func (m *Manager) TestConnection(endpoint Endpoint) Result {
	return m.ExecuteCommand(endpoint, "list")
}

// ExecuteCommand runs a command on the pooled client and normalizes the
// response.
func (m *Manager) ExecuteCommand(endpoint Endpoint, cmd string) Result {
	client := m.GetConnection(endpoint)

	resp, err := client.Command(cmd)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	return normalizeResponse(cmd, resp)
}

// GetStatus issues "list" and parses the player summary out of the
// response.
func (m *Manager) GetStatus(endpoint Endpoint) (PlayerStatus, Result) {
	result := m.ExecuteCommand(endpoint, "list")
	if !result.Succeeded() {
		return PlayerStatus{}, result
	}

	status, ok := parsePlayerList(result.Response)
	if !ok {
		return PlayerStatus{}, result
	}
	return status, result
}

// Quirk handling. Some modded servers answer administrative commands
// with a generic "Unknown command" line while still performing the
// action. Only commands known to behave that way are rewritten; an
// unknown command really is a failure for anything else.
var quirkCommands = map[string]struct{}{
	"save-off":         {},
	"save-on":          {},
	"save-all":         {},
	"save-all flush":   {},
	"stop":             {},
	"whitelist reload": {},
}

var unknownCommandRe = regexp.MustCompile(`(?i)unknown (?:or incomplete )?command`)

// colorCodeRe strips legacy §-prefixed formatting codes from responses.
var colorCodeRe = regexp.MustCompile(`§[0-9a-fk-or]`)

func normalizeResponse(cmd, resp string) Result {
	cleaned := strings.TrimSpace(colorCodeRe.ReplaceAllString(resp, ""))

	if unknownCommandRe.MatchString(cleaned) {
		if _, ok := quirkCommands[strings.TrimSpace(cmd)]; ok {
			return Result{
				Outcome:  OutcomeFalsePositive,
				Response: extractPayload(cleaned),
			}
		}
		return Result{
			Outcome: OutcomeFailed,
			Err:     fmt.Errorf("rcon: server rejected command %q: %s", cmd, cleaned),
		}
	}

	return Result{Outcome: OutcomeOK, Response: cleaned}
}

// extractPayload keeps any trailing content after the quirk line so the
// caller still sees whatever the server managed to say.
func extractPayload(resp string) string {
	if idx := unknownCommandRe.FindStringIndex(resp); idx != nil {
		rest := strings.TrimSpace(resp[idx[1]:])
		rest = strings.TrimPrefix(rest, ".")
		return strings.TrimSpace(rest)
	}
	return resp
}

// playerListRe matches the vanilla "list" summary, e.g.
// "There are 3 of a max of 20 players online: alice, bob, carol".
var playerListRe = regexp.MustCompile(`There are (\d+)(?: of a max(?: of)? |/)(\d+) players online:?\s*(.*)`)

func parsePlayerList(resp string) (PlayerStatus, bool) {
	match := playerListRe.FindStringSubmatch(resp)
	if match == nil {
		return PlayerStatus{}, false
	}

	online, _ := strconv.Atoi(match[1])
	maxPlayers, _ := strconv.Atoi(match[2])

	status := PlayerStatus{Players: online, MaxPlayers: maxPlayers}
	for _, name := range strings.Split(match[3], ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			status.Names = append(status.Names, name)
		}
	}
	return status, true
}
