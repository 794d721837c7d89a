package main

import (
	"log"
	"strings"

	"github.com/horgh/irc"
)

// Verbs that require a registered session. Everything else is 421.
var registeredVerbs = map[string]struct{}{
	"JOIN":     {},
	"PART":     {},
	"PRIVMSG":  {},
	"TOPIC":    {},
	"NAMES":    {},
	"KICK":     {},
	"MODE":     {},
	"BOT_AUTH": {},
}

// handleLine takes action based on one raw protocol line from a session.
//
// Validation failures reply with a numeric and keep the session. Only I/O
// errors end a session, and those surface through the read loop, not here.
func (s *Server) handleLine(sess *Session, line string) {
	m, err := irc.ParseMessage(line)
	if err != nil && err != irc.ErrTruncated {
		log.Printf("Session %s: Invalid message: %q: %s", sess, line, err)
		return
	}

	// Record that the client said something to us just now.
	sess.touch()

	verb := strings.ToUpper(m.Command)

	switch verb {
	case "NICK":
		s.nickCommand(sess, m)
		return
	case "USER":
		s.userCommand(sess, m)
		return
	case "QUIT":
		// Allowed in any state. An unregistered session has no peers to tell.
		s.quitCommand(sess)
		return
	}

	if _, known := registeredVerbs[verb]; !known {
		_ = sess.send(errUnknownCommand(s.host(), sess.Nick(), verb))
		return
	}

	if !sess.Registered() {
		_ = sess.send(noticeLine(s.host(), sess.Nick(), "You have not registered"))
		return
	}

	switch verb {
	case "JOIN":
		s.joinCommand(sess, m)
	case "PART":
		s.partCommand(sess, m)
	case "PRIVMSG":
		s.privmsgCommand(sess, m)
	case "TOPIC":
		s.topicCommand(sess, m)
	case "NAMES":
		s.namesCommand(sess, m)
	case "KICK":
		s.kickCommand(sess, m)
	case "MODE":
		s.modeCommand(sess, m)
	case "BOT_AUTH":
		s.botAuthCommand(sess, m)
	}
}

func (s *Server) nickCommand(sess *Session, m irc.Message) {
	if len(m.Params) == 0 {
		// 431 ERR_NONICKNAMEGIVEN
		_ = sess.send(errNoNicknameGiven(s.host(), sess.Nick()))
		return
	}

	wanted := m.Params[0]

	// A trailing param can be empty or carry spaces (NICK :al ice). Neither
	// may enter the nickname index. There is no 432 in the vocabulary, so
	// an invalid nickname answers 431 like a missing one.
	if !isValidNick(wanted) {
		_ = sess.send(errNoNicknameGiven(s.host(), sess.Nick()))
		return
	}

	oldNick := sess.rawNick()
	wasRegistered := sess.Registered()

	// Collisions resolve by suffixing, so there is no 433 to raise.
	actual, renamed := s.assignNick(sess, wanted)

	if renamed {
		_ = sess.send(noticeNickChanged(s.host(), wanted, actual))
	}

	if wasRegistered && oldNick != "" && oldNick != actual {
		// Message comes from the old nick, to the session and to every peer
		// sharing a channel.
		line := nickLine(oldNick, actual)
		for _, peer := range s.peersAndSelf(sess) {
			_ = peer.send(line)
		}
	}
}

func (s *Server) userCommand(sess *Session, m irc.Message) {
	// USER only completes registration once. Repeats are ignored.
	if sess.Registered() {
		return
	}

	if !sess.nickSet() {
		// 431 ERR_NONICKNAMEGIVEN
		_ = sess.send(errNoNicknameGiven(s.host(), sess.Nick()))
		return
	}

	// 4 parameters: <user> <mode> <unused> <realname>
	if len(m.Params) < 4 {
		// 461 ERR_NEEDMOREPARAMS
		_ = sess.send(errNeedMoreParams(s.host(), sess.Nick(), "USER"))
		return
	}

	sess.setUser(m.Params[0])

	nick := sess.Nick()
	_ = sess.send(rplWelcome(s.host(), nick))
	_ = sess.send(rplYourHost(s.host(), nick))
	_ = sess.send(rplMyInfo(s.host(), nick))
}

func (s *Server) joinCommand(sess *Session, m irc.Message) {
	if len(m.Params) == 0 {
		_ = sess.send(errNeedMoreParams(s.host(), sess.Nick(), "JOIN"))
		return
	}

	name := m.Params[0]
	nick := sess.Nick()

	if !isValidChannel(name) {
		// 403 ERR_NOSUCHCHANNEL. Used to indicate the name is invalid.
		_ = sess.send(errNoSuchChannel(s.host(), nick, name))
		return
	}

	s.mu.Lock()

	ch, exists := s.channels[name]
	if exists && ch.isBanned(nick) {
		s.mu.Unlock()
		// 478 ERR_BANNEDFROMCHAN
		_ = sess.send(errBannedFromChan(s.host(), nick, name))
		return
	}

	if !exists {
		ch = NewChannel(name)
		s.channels[name] = ch
	}

	if ch.hasMember(sess) {
		// Re-JOIN is a no-op.
		s.mu.Unlock()
		return
	}

	ch.join(sess)
	nicks := ch.memberNicks()

	s.mu.Unlock()

	// Everyone, the joiner included, hears about the join.
	ch.broadcast(joinLine(nick, name), nil)

	_ = sess.send(rplNamReply(s.host(), nick, name, nicks))
	_ = sess.send(rplEndOfNames(s.host(), nick, name))
}

func (s *Server) partCommand(sess *Session, m irc.Message) {
	if len(m.Params) == 0 {
		_ = sess.send(errNeedMoreParams(s.host(), sess.Nick(), "PART"))
		return
	}

	name := m.Params[0]
	nick := sess.Nick()

	s.mu.Lock()

	ch, exists := s.channels[name]
	if !exists || !ch.hasMember(sess) {
		s.mu.Unlock()
		// 442 ERR_NOTONCHANNEL
		_ = sess.send(errNotOnChannel(s.host(), nick, name))
		return
	}

	// Snapshot before removal so the parting member hears its own PART.
	members := ch.memberSessions()

	ch.part(sess)
	if ch.isEmpty() {
		delete(s.channels, name)
	}

	s.mu.Unlock()

	ch.sendTo(members, partLine(nick, name), nil)
}

func (s *Server) privmsgCommand(sess *Session, m irc.Message) {
	if len(m.Params) < 2 {
		_ = sess.send(errNeedMoreParams(s.host(), sess.Nick(), "PRIVMSG"))
		return
	}

	target := m.Params[0]
	// Clients that forget the : prefix still come through whole.
	text := strings.Join(m.Params[1:], " ")
	nick := sess.Nick()

	if strings.HasPrefix(target, "#") {
		s.mu.Lock()

		ch, exists := s.channels[target]
		if !exists {
			s.mu.Unlock()
			// 403 ERR_NOSUCHCHANNEL
			_ = sess.send(errNoSuchChannel(s.host(), nick, target))
			return
		}

		if !ch.hasMember(sess) {
			s.mu.Unlock()
			// 442 ERR_NOTONCHANNEL
			_ = sess.send(errNotOnChannel(s.host(), nick, target))
			return
		}

		if ch.isBanned(nick) || ch.isMuted(nick) {
			s.mu.Unlock()
			// 404 ERR_CANNOTSENDTOCHAN
			_ = sess.send(errCannotSendToChan(s.host(), nick, target))
			return
		}

		s.mu.Unlock()

		ch.broadcast(privmsgLine(nick, target, text), sess)
		return
	}

	// Messaging a nick directly.
	targetSess := s.findByNick(target)
	if targetSess == nil {
		// 401 ERR_NOSUCHNICK
		_ = sess.send(errNoSuchNick(s.host(), nick, target))
		return
	}

	_ = targetSess.send(privmsgLine(nick, target, text))
}

func (s *Server) topicCommand(sess *Session, m irc.Message) {
	if len(m.Params) == 0 {
		_ = sess.send(errNeedMoreParams(s.host(), sess.Nick(), "TOPIC"))
		return
	}

	name := m.Params[0]
	nick := sess.Nick()

	s.mu.Lock()

	ch, exists := s.channels[name]
	if !exists || !ch.hasMember(sess) {
		s.mu.Unlock()
		// 442 ERR_NOTONCHANNEL
		_ = sess.send(errNotOnChannel(s.host(), nick, name))
		return
	}

	if len(m.Params) >= 2 {
		topic := truncateTopic(strings.Join(m.Params[1:], " "))
		ch.setTopic(topic)
		s.mu.Unlock()

		ch.broadcast(topicLine(nick, name, topic), nil)
		return
	}

	topic, isSet := ch.Topic()
	s.mu.Unlock()

	if isSet {
		// 332 RPL_TOPIC
		_ = sess.send(rplTopic(s.host(), nick, name, topic))
	} else {
		// 331 RPL_NOTOPIC
		_ = sess.send(rplNoTopic(s.host(), nick, name))
	}
}

func (s *Server) namesCommand(sess *Session, m irc.Message) {
	if len(m.Params) == 0 {
		_ = sess.send(errNeedMoreParams(s.host(), sess.Nick(), "NAMES"))
		return
	}

	name := m.Params[0]
	nick := sess.Nick()

	s.mu.Lock()
	ch, exists := s.channels[name]
	if !exists {
		s.mu.Unlock()
		// 442 ERR_NOTONCHANNEL
		_ = sess.send(errNotOnChannel(s.host(), nick, name))
		return
	}
	nicks := ch.memberNicks()
	s.mu.Unlock()

	_ = sess.send(rplNamReply(s.host(), nick, name, nicks))
	_ = sess.send(rplEndOfNames(s.host(), nick, name))
}

func (s *Server) kickCommand(sess *Session, m irc.Message) {
	if len(m.Params) < 2 {
		_ = sess.send(errNeedMoreParams(s.host(), sess.Nick(), "KICK"))
		return
	}

	name := m.Params[0]
	targetNick := m.Params[1]
	nick := sess.Nick()

	s.mu.Lock()

	ch, exists := s.channels[name]
	if !exists || !ch.hasMember(sess) {
		s.mu.Unlock()
		// 442 ERR_NOTONCHANNEL
		_ = sess.send(errNotOnChannel(s.host(), nick, name))
		return
	}

	target := ch.findMember(targetNick)
	if target == nil {
		s.mu.Unlock()
		// 401 ERR_NOSUCHNICK
		_ = sess.send(errNoSuchNick(s.host(), nick, targetNick))
		return
	}

	if target == sess {
		s.mu.Unlock()
		// 481 ERR_NOPRIVILEGES. No kicking yourself.
		_ = sess.send(errNoPrivileges(s.host(), nick, name))
		return
	}

	// Snapshot before removal so the target hears its own kick.
	members := ch.memberSessions()

	ch.part(target)

	// The bot stays resident: kicking it just bounces it back in.
	botRejoin := s.botNick != "" && targetNick == s.botNick
	if botRejoin {
		ch.join(target)
	}

	if ch.isEmpty() {
		delete(s.channels, name)
	}

	s.mu.Unlock()

	ch.sendTo(members, kickLine(nick, name, targetNick), nil)

	if botRejoin {
		ch.sendTo(members, joinLine(targetNick, name), nil)
	}
}

func (s *Server) modeCommand(sess *Session, m irc.Message) {
	if len(m.Params) < 2 {
		_ = sess.send(errNeedMoreParams(s.host(), sess.Nick(), "MODE"))
		return
	}

	name := m.Params[0]
	flag := m.Params[1]
	nick := sess.Nick()

	switch flag {
	case "+b", "-b", "+m", "-m":
	default:
		// Not a flag we speak. Treat as malformed.
		_ = sess.send(errNeedMoreParams(s.host(), nick, "MODE"))
		return
	}

	if len(m.Params) < 3 {
		_ = sess.send(errNeedMoreParams(s.host(), nick, "MODE"))
		return
	}
	targetNick := m.Params[2]

	s.mu.Lock()

	ch, exists := s.channels[name]
	if !exists {
		s.mu.Unlock()
		// 442 ERR_NOTONCHANNEL
		_ = sess.send(errNotOnChannel(s.host(), nick, name))
		return
	}

	// Snapshot before any force part so the banned member hears both the
	// mode change and its own removal.
	members := ch.memberSessions()

	var forced *Session
	switch flag {
	case "+b":
		ch.ban(targetNick)
		forced = ch.findMember(targetNick)
		if forced != nil {
			ch.part(forced)
			if ch.isEmpty() {
				delete(s.channels, name)
			}
		}
	case "-b":
		ch.unban(targetNick)
	case "+m":
		ch.mute(targetNick)
	case "-m":
		ch.unmute(targetNick)
	}

	s.mu.Unlock()

	ch.sendTo(members, rplChannelModeIs(s.host(), nick, name, flag, targetNick),
		nil)

	if forced != nil {
		ch.sendTo(members, partLine(targetNick, name), nil)
	}
}

func (s *Server) quitCommand(sess *Session) {
	// removeSession broadcasts the QUIT to peers and closes the connection.
	// The read loop will notice the closed connection and find nothing left
	// to clean up.
	s.removeSession(sess)
}

func (s *Server) botAuthCommand(sess *Session, m irc.Message) {
	nick := sess.Nick()

	if len(m.Params) == 0 {
		_ = sess.send(errNeedMoreParams(s.host(), nick, "BOT_AUTH"))
		return
	}

	secret := m.Params[0]

	if s.Config.BotSecret == "" || secret != s.Config.BotSecret {
		_ = sess.send(noticeLine(s.host(), nick, "BOT_AUTH failed"))
		return
	}

	s.mu.Lock()
	// At most one bot nickname is remembered at a time.
	s.botNick = sess.rawNick()
	s.mu.Unlock()

	log.Printf("Session %s: Authenticated as bot %s", sess, nick)

	_ = sess.send(rplBotAuth(s.host(), nick))
}
