package main

import (
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

// Session holds state about a single client connection: who it claims to be
// and when we last heard from it.
//
// A Session moves through NICK and USER to become registered. Until then the
// only commands it may issue are NICK and USER themselves.
type Session struct {
	Conn Conn

	// A unique id. Internal to this server only.
	ID uint64

	Server *Server

	RemoteAddr net.Addr

	// writeMu serializes writes to the connection. Many goroutines fan out to
	// the same Session during broadcasts.
	writeMu sync.Mutex
	closed  bool

	// mu guards the registration state and activity clock.
	mu           sync.Mutex
	nick         string
	user         string
	registered   bool
	lastActivity time.Time
}

// NewSession creates a Session.
func NewSession(s *Server, id uint64, conn net.Conn) *Session {
	return &Session{
		Conn:         NewConn(conn, s.Config.WriteTimeout),
		ID:           id,
		Server:       s,
		RemoteAddr:   conn.RemoteAddr(),
		lastActivity: time.Now(),
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("%d %s", s.ID, s.RemoteAddr)
}

// send writes one line to the client, appending CRLF if the caller did not.
//
// It is safe for concurrent use. A write failure closes the connection and is
// reported to the caller, but broadcast loops are expected to carry on; the
// dead session gets torn down when its read loop notices.
func (s *Session) send(line string) error {
	if !strings.HasSuffix(line, "\r\n") {
		line += "\r\n"
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return fmt.Errorf("session is closed")
	}

	if err := s.Conn.Write(line); err != nil {
		s.closed = true
		if closeErr := s.Conn.Close(); closeErr != nil {
			log.Printf("Session %s: Problem closing connection: %s", s, closeErr)
		}
		return err
	}

	return nil
}

// touch records that we heard from the client just now.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// idleSince reports the last-activity instant.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// close shuts the connection down. It is idempotent and safe to call from
// any goroutine, including while sends are in flight.
func (s *Session) close() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if err := s.Conn.Close(); err != nil {
		log.Printf("Session %s: Problem closing connection: %s", s, err)
	}
}

// Nick returns the session's nickname, or "*" if none is set yet. Numerics
// need a target nick even before registration; * is what ircds use there.
func (s *Session) Nick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nick == "" {
		return "*"
	}
	return s.nick
}

// rawNick returns the nickname as set, blank if none.
func (s *Session) rawNick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nick
}

func (s *Session) nickSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nick != ""
}

func (s *Session) setNick(nick string) {
	s.mu.Lock()
	s.nick = nick
	s.mu.Unlock()
}

// Registered reports whether both NICK and USER completed.
func (s *Session) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

func (s *Session) setUser(user string) {
	s.mu.Lock()
	s.user = user
	s.registered = true
	s.mu.Unlock()
}
