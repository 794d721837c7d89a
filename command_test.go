package main

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// pipeSession hooks a session up to an in-memory pipe and collects every
// line the server writes to it. No TCP, no read loop; tests drive
// handleLine directly.
func pipeSession(t *testing.T, s *Server) (*Session, <-chan string) {
	serverSide, clientSide := net.Pipe()

	sess := s.addSession(serverSide)

	lines := make(chan string, 16)
	go func() {
		r := bufio.NewReader(clientSide)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
	}()

	return sess, lines
}

func nextLine(t *testing.T, lines <-chan string) string {
	select {
	case line := <-lines:
		return line
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for a line")
		return ""
	}
}

func expectNoLine(t *testing.T, lines <-chan string) {
	select {
	case line := <-lines:
		t.Fatalf("read %q, wanted nothing", line)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleLineIgnoresMalformed(t *testing.T) {
	s, err := newServer("")
	if err != nil {
		t.Fatalf("error creating server: %s", err)
	}

	sess, lines := pipeSession(t, s)

	// A bare prefix is unparseable. The line is dropped, not the session.
	s.handleLine(sess, ":\r\n")
	s.handleLine(sess, " \r\n")
	expectNoLine(t, lines)

	s.handleLine(sess, "BLAH\r\n")
	if got := nextLine(t, lines); got != errUnknownCommand(s.host(), "*",
		"BLAH") {
		t.Errorf("read %q, wanted 421", got)
	}
}

func TestHandleLineVerbCase(t *testing.T) {
	s, err := newServer("")
	if err != nil {
		t.Fatalf("error creating server: %s", err)
	}

	sess, lines := pipeSession(t, s)

	s.handleLine(sess, "nick alice\r\n")
	s.handleLine(sess, "user alice 0 * :Alice\r\n")

	if got := nextLine(t, lines); got != rplWelcome(s.host(), "alice") {
		t.Fatalf("read %q, wanted 001", got)
	}
	nextLine(t, lines) // 002
	nextLine(t, lines) // 004

	s.handleLine(sess, "join #test\r\n")
	if got := nextLine(t, lines); got != joinLine("alice", "#test") {
		t.Errorf("read %q, wanted JOIN relay", got)
	}
}

func TestHandleLineTouchesActivity(t *testing.T) {
	s, err := newServer("")
	if err != nil {
		t.Fatalf("error creating server: %s", err)
	}

	sess, _ := pipeSession(t, s)

	before := sess.idleSince()
	time.Sleep(10 * time.Millisecond)

	s.handleLine(sess, "NICK alice\r\n")

	if !sess.idleSince().After(before) {
		t.Errorf("activity clock did not advance on a handled line")
	}
}
