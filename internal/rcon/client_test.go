package rcon

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testServer is a minimal in-process RCON peer. respond is called with
// the command packet and the sentinel id after both have been read and
// decides what frames to send back.
type testServer struct {
	ln       net.Listener
	password string
	respond  func(conn net.Conn, cmd Packet, sentinelID int32)
	conns    atomic.Int32
	// dropAfterAuth closes the first N connections right after a
	// successful auth exchange.
	dropAfterAuth int32
}

func newTestServer(t *testing.T, password string) *testServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &testServer{ln: ln, password: password}
	s.respond = func(conn net.Conn, cmd Packet, sentinelID int32) {
		_, _ = conn.Write(Encode(cmd.ID, TypeResponseValue, "ok:"+cmd.Body))
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *testServer) endpoint() Endpoint {
	addr := s.ln.Addr().(*net.TCPAddr)
	return Endpoint{Host: "127.0.0.1", Port: addr.Port, Password: s.password}
}

func (s *testServer) serve(conn net.Conn) {
	defer conn.Close()
	n := s.conns.Add(1)

	auth, err := readTestPacket(conn)
	if err != nil {
		return
	}
	if auth.Body != s.password {
		_, _ = conn.Write(Encode(-1, TypeAuthResponse, ""))
		return
	}
	_, _ = conn.Write(Encode(auth.ID, TypeAuthResponse, ""))

	if n <= s.dropAfterAuth {
		return
	}

	for {
		cmd, err := readTestPacket(conn)
		if err != nil {
			return
		}
		sentinel, err := readTestPacket(conn)
		if err != nil {
			return
		}
		s.respond(conn, cmd, sentinel.ID)
	}
}

func readTestPacket(conn net.Conn) (Packet, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return Packet{}, err
	}
	size := int(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24)
	frame := make([]byte, 4+size)
	copy(frame, header)
	if _, err := io.ReadFull(conn, frame[4:]); err != nil {
		return Packet{}, err
	}
	return Decode(frame)
}

func fastOptions() *ClientOptions {
	return &ClientOptions{
		DialTimeout:      2 * time.Second,
		IOTimeout:        2 * time.Second,
		ConnectCooldown:  time.Minute,
		ReconnectRetries: 3,
		BackoffBase:      10 * time.Millisecond,
		BackoffCap:       50 * time.Millisecond,
	}
}

func TestClient_ConnectAndCommand(t *testing.T) {
	srv := newTestServer(t, "secret")
	client := NewClient(srv.endpoint(), fastOptions())
	defer client.Disconnect()

	ok, err := client.Connect()
	if err != nil || !ok {
		t.Fatalf("Connect() = (%v, %v), want (true, nil)", ok, err)
	}
	if !client.Connected() {
		t.Fatal("Connected() = false after Connect")
	}

	resp, err := client.Command("list")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	if resp != "ok:list" {
		t.Errorf("Command() = %q, want ok:list", resp)
	}
}

func TestClient_AuthFailure(t *testing.T) {
	srv := newTestServer(t, "secret")
	endpoint := srv.endpoint()
	endpoint.Password = "wrong"
	client := NewClient(endpoint, fastOptions())

	if _, err := client.Connect(); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Connect() error = %v, want ErrAuthFailed", err)
	}
	if client.Connected() {
		t.Error("client should not be connected after auth failure")
	}
}

func TestClient_MultiPacketResponse(t *testing.T) {
	srv := newTestServer(t, "secret")
	srv.respond = func(conn net.Conn, cmd Packet, sentinelID int32) {
		// Fragments carry neither the command id nor the sentinel id;
		// the sentinel's empty reply terminates the reassembly.
		_, _ = conn.Write(Encode(0, TypeResponseValue, "part one, "))
		_, _ = conn.Write(Encode(0, TypeResponseValue, "part two"))
		_, _ = conn.Write(Encode(sentinelID, TypeResponseValue, ""))
	}

	client := NewClient(srv.endpoint(), fastOptions())
	defer client.Disconnect()

	resp, err := client.Command("banlist")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	if resp != "part one, part two" {
		t.Errorf("Command() = %q, want reassembled body", resp)
	}
}

func TestClient_ConcurrentCommandsSerialized(t *testing.T) {
	srv := newTestServer(t, "secret")
	client := NewClient(srv.endpoint(), fastOptions())
	defer client.Disconnect()

	if _, err := client.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	// Concurrent callers share one socket; the client must queue them so
	// every response pairs with the command that issued it.
	const callers = 50
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := fmt.Sprintf("say hello %d", i)
			resp, err := client.Command(cmd)
			if err != nil {
				errs <- fmt.Errorf("Command(%q): %w", cmd, err)
				return
			}
			if resp != "ok:"+cmd {
				errs <- fmt.Errorf("Command(%q) = %q, want %q", cmd, resp, "ok:"+cmd)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if got := srv.conns.Load(); got != 1 {
		t.Errorf("server saw %d connections, want 1 shared session", got)
	}
}

func TestClient_ConnectCooldown(t *testing.T) {
	// A closed port makes the first attempt fail fast.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := NewClient(Endpoint{Host: "127.0.0.1", Port: port, Password: "x"}, fastOptions())

	if _, err := client.Connect(); err == nil {
		t.Fatal("expected dial error on closed port")
	}

	// Inside the cooldown window the client must not touch the network.
	ok, err := client.Connect()
	if ok || err != nil {
		t.Fatalf("Connect() within cooldown = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestClient_AutoReconnect(t *testing.T) {
	srv := newTestServer(t, "secret")
	srv.dropAfterAuth = 1

	client := NewClient(srv.endpoint(), fastOptions())
	defer client.Disconnect()

	if _, err := client.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	// The first session is dropped server-side; Command must detect the
	// transport failure, reconnect and retry exactly once.
	resp, err := client.Command("list")
	if err != nil {
		t.Fatalf("Command() after drop error: %v", err)
	}
	if resp != "ok:list" {
		t.Errorf("Command() = %q, want ok:list", resp)
	}
	if got := srv.conns.Load(); got != 2 {
		t.Errorf("server saw %d connections, want 2", got)
	}
}

func TestClient_CommandOnce_NotConnected(t *testing.T) {
	srv := newTestServer(t, "secret")
	client := NewClient(srv.endpoint(), fastOptions())

	if _, err := client.CommandOnce("list"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("CommandOnce() error = %v, want ErrNotConnected", err)
	}
}

func TestClient_WithSession(t *testing.T) {
	srv := newTestServer(t, "secret")
	client := NewClient(srv.endpoint(), fastOptions())

	err := client.WithSession(func(c *Client) error {
		resp, err := c.CommandOnce("seed")
		if err != nil {
			return err
		}
		if resp != "ok:seed" {
			t.Errorf("CommandOnce() = %q, want ok:seed", resp)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession() error: %v", err)
	}
	if client.Connected() {
		t.Error("session should be released after WithSession")
	}
}

func TestClient_WithSessionCooldown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := NewClient(Endpoint{Host: "127.0.0.1", Port: port, Password: "x"}, fastOptions())
	if _, err := client.Connect(); err == nil {
		t.Fatal("expected dial error on closed port")
	}

	if err := client.WithSession(func(*Client) error { return nil }); !errors.Is(err, ErrCooldown) {
		t.Fatalf("WithSession() error = %v, want ErrCooldown", err)
	}
}

func TestClient_ReconnectGivesUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := NewClient(Endpoint{Host: "127.0.0.1", Port: port, Password: "x"}, fastOptions())

	if _, err := client.Command("list"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Command() error = %v, want ErrUnavailable", err)
	}
}
