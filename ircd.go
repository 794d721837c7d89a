package main

import (
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Server holds the state for a server.
//
// It owns the process-wide indexes linking connections, nicknames, and
// channels. Everything global to a server lives in an instance of this
// struct rather than in globals.
type Server struct {
	Config Config

	// mu guards the indexes below. Lock order is Server then Channel then
	// Session. All membership mutations happen under this lock so that a
	// channel reachable from the index always has at least one member.
	mu sync.Mutex

	// Session id to Session.
	sessions map[uint64]*Session

	// Nickname to Session. A nickname maps to at most one live session.
	nicks map[string]*Session

	// Channel name to Channel.
	channels map[string]*Channel

	// Nickname of the session that passed BOT_AUTH. Blank if none. The bot
	// is exempt from idle reaping and gets re-added to channels on KICK.
	botNick string

	nextID uint64

	// TCP listener.
	Listener net.Listener

	// When we close this channel, this indicates that we're shutting down.
	ShutdownChan chan struct{}

	shutdownOnce sync.Once

	// WaitGroup to ensure all goroutines clean up before we end.
	WG sync.WaitGroup
}

func main() {
	log.SetFlags(0)
	rand.Seed(time.Now().UnixNano())

	args, err := getArgs()
	if err != nil {
		log.Fatal(err)
	}

	server, err := newServer(args.ConfigFile)
	if err != nil {
		log.Fatal(err)
	}

	if err := server.start(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Server shutdown cleanly.")
}

func newServer(configFile string) (*Server, error) {
	s := Server{
		sessions: make(map[uint64]*Session),
		nicks:    make(map[string]*Session),
		channels: make(map[string]*Channel),

		// shutdown() closes this channel.
		ShutdownChan: make(chan struct{}),
	}

	if err := s.checkAndParseConfig(configFile); err != nil {
		return nil, fmt.Errorf("configuration problem: %s", err)
	}

	return &s, nil
}

// host is the server prefix used on every numeric reply.
func (s *Server) host() string {
	return s.Config.ListenHost
}

// start starts up the server.
//
// We open the TCP port, start the accepter and reaper goroutines, and block
// until shutdown.
func (s *Server) start() error {
	if err := s.listen(); err != nil {
		return err
	}

	s.startWorkers()

	<-s.ShutdownChan

	s.WG.Wait()

	return nil
}

func (s *Server) listen() error {
	// "tcp" with an IPv6 listen host gives us the dual stack socket with v4
	// mapping.
	ln, err := net.Listen("tcp", net.JoinHostPort(s.Config.ListenHost,
		s.Config.ListenPort))
	if err != nil {
		return fmt.Errorf("unable to listen: %s", err)
	}
	s.Listener = ln

	log.Printf("chatterbox listening on %s", ln.Addr())

	return nil
}

func (s *Server) startWorkers() {
	s.WG.Add(1)
	go s.acceptConnections()

	s.WG.Add(1)
	go s.reaper()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		select {
		case <-signalChan:
			s.shutdown()
		case <-s.ShutdownChan:
		}
		signal.Stop(signalChan)
	}()
}

// shutdown starts server shutdown: stop accepting, close every live
// session's connection, and let their read loops run the usual cleanup.
func (s *Server) shutdown() {
	s.shutdownOnce.Do(func() {
		log.Printf("Server shutdown initiated.")

		// Closing ShutdownChan indicates to other goroutines that we're
		// shutting down.
		close(s.ShutdownChan)

		if err := s.Listener.Close(); err != nil {
			log.Printf("Problem closing TCP listener: %s", err)
		}

		s.mu.Lock()
		sessions := make([]*Session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			sessions = append(sessions, sess)
		}
		s.mu.Unlock()

		for _, sess := range sessions {
			sess.close()
		}
	})
}

// Return true if the server is shutting down.
func (s *Server) isShuttingDown() bool {
	select {
	case <-s.ShutdownChan:
		return true
	default:
		return false
	}
}

// acceptConnections accepts TCP connections and starts a read loop goroutine
// for each.
func (s *Server) acceptConnections() {
	defer s.WG.Done()

	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			if s.isShuttingDown() {
				break
			}
			log.Printf("Failed to accept connection: %s", err)
			continue
		}

		sess := s.addSession(conn)
		log.Printf("New client connection: %s", sess)

		s.WG.Add(1)
		go s.readLoop(sess)
	}

	log.Printf("Connection accepter shutting down.")
}

// readLoop endlessly reads lines from the session's TCP connection and
// dispatches each one. On read error or peer close we run the disconnect
// cleanup. All cleanup is idempotent; QUIT may already have torn the
// session down by the time we get here.
func (s *Server) readLoop(sess *Session) {
	defer s.WG.Done()

	for {
		line, err := sess.Conn.Read()
		if err != nil {
			log.Printf("Session %s: %s", sess, err)
			break
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		log.Printf("Session %s: Received: %s", sess,
			strings.TrimRight(line, "\r\n"))

		s.handleLine(sess, line)
	}

	s.removeSession(sess)

	log.Printf("Session %s: Reader shutting down.", sess)
}

// addSession registers a new connection in the session index.
func (s *Server) addSession(conn net.Conn) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	sess := NewSession(s, id, conn)
	s.sessions[id] = sess
	return sess
}

// removeSession tears a session down: frees its nickname, removes it from
// every channel it is in, drops channels that become empty, tells its peers
// it quit, and closes the connection.
//
// Safe to call more than once; only the first call does the work.
func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()

	if _, exists := s.sessions[sess.ID]; !exists {
		s.mu.Unlock()
		sess.close()
		return
	}
	delete(s.sessions, sess.ID)

	nick := sess.rawNick()
	if nick != "" {
		if holder, exists := s.nicks[nick]; exists && holder == sess {
			delete(s.nicks, nick)
		}
		if s.botNick == nick {
			s.botNick = ""
		}
	}

	// Membership is discovered by scanning channels; sessions hold no back
	// pointers.
	peers := make(map[uint64]*Session)
	for name, ch := range s.channels {
		if !ch.hasMember(sess) {
			continue
		}
		ch.part(sess)
		if ch.isEmpty() {
			delete(s.channels, name)
			continue
		}
		for _, member := range ch.memberSessions() {
			peers[member.ID] = member
		}
	}

	s.mu.Unlock()

	// Each peer hears about the quit once, no matter how many channels they
	// shared.
	if nick != "" {
		line := quitLine(nick)
		for _, peer := range peers {
			_ = peer.send(line)
		}
	}

	sess.close()

	log.Printf("Session %s: Removed.", sess)
}

// assignNick sets or changes a session's nickname.
//
// If the wanted nickname is held by another live session we synthesize
// wanted<NNNN> with a random four digit suffix until unique. Returns the
// nickname actually assigned and whether it differs from the wanted one.
func (s *Server) assignNick(sess *Session, wanted string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := sess.rawNick()
	if wanted == current {
		return wanted, false
	}

	actual := wanted
	for {
		holder, exists := s.nicks[actual]
		if !exists || holder == sess {
			break
		}
		actual = fmt.Sprintf("%s%d", wanted, 1000+rand.Intn(9000))
	}

	if current != "" {
		delete(s.nicks, current)
		if s.botNick == current {
			s.botNick = actual
		}
	}
	s.nicks[actual] = sess
	sess.setNick(actual)

	return actual, actual != wanted
}

// findByNick returns the live session holding a nickname, if any.
func (s *Server) findByNick(nick string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nicks[nick]
}

// peersAndSelf returns the session itself plus every session sharing a
// channel with it, each at most once.
func (s *Server) peersAndSelf(sess *Session) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := map[uint64]*Session{sess.ID: sess}
	for _, ch := range s.channels {
		if !ch.hasMember(sess) {
			continue
		}
		for _, member := range ch.memberSessions() {
			peers[member.ID] = member
		}
	}

	result := make([]*Session, 0, len(peers))
	for _, peer := range peers {
		result = append(result, peer)
	}
	return result
}

// reaper periodically disconnects sessions that have been idle longer than
// the configured limit. The authenticated bot is exempt.
func (s *Server) reaper() {
	defer s.WG.Done()

	for {
		select {
		case <-time.After(s.Config.CheckInterval):
		case <-s.ShutdownChan:
			log.Printf("Reaper shutting down.")
			return
		}

		s.reapIdleSessions()
	}
}

func (s *Server) reapIdleSessions() {
	now := time.Now()

	s.mu.Lock()
	var idle []*Session
	for _, sess := range s.sessions {
		if s.botNick != "" && sess.rawNick() == s.botNick {
			continue
		}
		if now.Sub(sess.idleSince()) > s.Config.IdleLimit {
			idle = append(idle, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		log.Printf("Session %s: Idle too long. Disconnecting.", sess)
		s.removeSession(sess)
	}
}
