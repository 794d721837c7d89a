package main

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"log"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/horgh/irc"
	"github.com/pkg/errors"
)

const writeTimeout = 30 * time.Second

// Bot holds state for one bot connection: who we are, where we sit, and who
// else is there.
type Bot struct {
	host      string
	port      int
	nick      string
	channel   string
	secret    string
	jokesFile string

	conn net.Conn
	rw   *bufio.ReadWriter

	// Nicknames seen in the last 353 reply for our channel.
	members []string
}

// NewBot creates a Bot.
func NewBot(args Args) *Bot {
	return &Bot{
		host:      args.Host,
		port:      args.Port,
		nick:      args.Nick,
		channel:   args.Channel,
		secret:    args.Secret,
		jokesFile: args.JokesFile,
	}
}

// run connects, registers, joins the channel, and then handles messages
// until the connection dies.
func (b *Bot) run() error {
	if err := b.connect(); err != nil {
		return err
	}
	defer func() {
		if err := b.conn.Close(); err != nil {
			log.Printf("Problem closing connection: %s", err)
		}
	}()

	if err := b.writeMessage(irc.Message{
		Command: "NICK",
		Params:  []string{b.nick},
	}); err != nil {
		return err
	}

	if err := b.writeMessage(irc.Message{
		Command: "USER",
		Params:  []string{b.nick, "0", "*", b.nick},
	}); err != nil {
		return err
	}

	if len(b.secret) > 0 {
		if err := b.writeMessage(irc.Message{
			Command: "BOT_AUTH",
			Params:  []string{b.secret},
		}); err != nil {
			return err
		}
	}

	if err := b.writeMessage(irc.Message{
		Command: "JOIN",
		Params:  []string{b.channel},
	}); err != nil {
		return err
	}

	for {
		m, err := b.readMessage()
		if err != nil {
			return err
		}

		if err := b.handleMessage(m); err != nil {
			return err
		}
	}
}

func (b *Bot) connect() error {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	conn, err := dialer.Dial("tcp", net.JoinHostPort(b.host,
		strconv.Itoa(b.port)))
	if err != nil {
		return errors.Wrap(err, "error dialing")
	}

	log.Printf("Connected to %s as %s", conn.RemoteAddr(), b.nick)

	b.conn = conn
	b.rw = bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	return nil
}

// handleMessage reacts to one message from the server.
func (b *Bot) handleMessage(m irc.Message) error {
	switch m.Command {
	case "PING":
		// chatterbox never pings, but other servers do.
		params := m.Params
		if len(params) == 0 {
			params = []string{b.host}
		}
		return b.writeMessage(irc.Message{Command: "PONG", Params: params})

	case "NOTICE":
		// The server renames us if our nickname is taken.
		if nick, ok := parseRenameNotice(lastParam(m)); ok {
			log.Printf("Server renamed us to %s", nick)
			b.nick = nick
		}
		return nil

	case "JOIN":
		// Someone arrived. Refresh our view of the channel.
		if m.SourceNick() != b.nick {
			return b.writeMessage(irc.Message{
				Command: "NAMES",
				Params:  []string{b.channel},
			})
		}
		return nil

	case "KICK":
		if len(m.Params) >= 2 && m.Params[1] == b.nick {
			// The server should bounce us back in when we're authenticated,
			// but rejoin anyway in case we aren't.
			return b.writeMessage(irc.Message{
				Command: "JOIN",
				Params:  []string{b.channel},
			})
		}
		return nil

	case replyNamReply:
		b.members = parseNamReply(m)
		return nil

	case replyTopic:
		return b.messageChannel(fmt.Sprintf("Current topic for %s: %s",
			b.channel, lastParam(m)))

	case replyNoTopic:
		return b.messageChannel(fmt.Sprintf("No topic is set for %s",
			b.channel))

	case "PRIVMSG":
		return b.handlePrivmsg(m)
	}

	return nil
}

func (b *Bot) handlePrivmsg(m irc.Message) error {
	if len(m.Params) < 2 {
		return nil
	}

	sender := m.SourceNick()
	target := m.Params[0]
	text := m.Params[1]

	// A direct message gets a joke.
	if target == b.nick {
		return b.messageNick(sender, b.pickJoke())
	}

	if target != b.channel || !strings.HasPrefix(text, "!") {
		return nil
	}

	command := strings.TrimPrefix(text, "!")

	if command == "hello" || strings.HasPrefix(command, "hello ") {
		return b.messageChannel(fmt.Sprintf("Hello, %s!", sender))
	}

	if command == "slap" || strings.HasPrefix(command, "slap ") {
		slapTarget := ""
		if fields := strings.Fields(command); len(fields) > 1 {
			slapTarget = fields[1]
		}
		return b.messageChannel(b.slapMessage(sender, slapTarget))
	}

	if command == "topic" || strings.HasPrefix(command, "topic ") {
		rest := strings.TrimSpace(strings.TrimPrefix(command, "topic"))
		if rest == "" {
			// Query. The 332/331 reply gets echoed into the channel.
			return b.writeMessage(irc.Message{
				Command: "TOPIC",
				Params:  []string{b.channel},
			})
		}
		return b.writeMessage(irc.Message{
			Command: "TOPIC",
			Params:  []string{b.channel, rest},
		})
	}

	return nil
}

// slapMessage decides who gets the trout.
//
// A named target must actually be in the channel, or the slapper slaps
// themselves. With no target we pick a random victim, excluding the slapper
// and the bot.
func (b *Bot) slapMessage(sender, target string) string {
	candidates := make([]string, 0, len(b.members))
	for _, member := range b.members {
		if member == sender || member == b.nick {
			continue
		}
		candidates = append(candidates, member)
	}

	if target != "" {
		for _, candidate := range candidates {
			if candidate == target {
				return fmt.Sprintf("%s slaps %s with a trout!", sender, target)
			}
		}
		return fmt.Sprintf("%s slaps themselves with a trout!", sender)
	}

	if len(candidates) == 0 {
		return fmt.Sprintf("%s has no one to slap!", sender)
	}

	victim := candidates[rand.Intn(len(candidates))]
	return fmt.Sprintf("%s slaps %s with a trout!", sender, victim)
}

// pickJoke returns a random joke from the joke file.
func (b *Bot) pickJoke() string {
	jokes, err := readJokes(b.jokesFile)
	if err != nil {
		return "Jokes text file not found."
	}
	if len(jokes) == 0 {
		return "Jokes text file is empty."
	}
	return jokes[rand.Intn(len(jokes))]
}

func readJokes(file string) ([]string, error) {
	buf, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "error reading jokes")
	}

	var jokes []string
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		jokes = append(jokes, line)
	}
	return jokes, nil
}

func (b *Bot) messageChannel(text string) error {
	return b.writeMessage(irc.Message{
		Command: "PRIVMSG",
		Params:  []string{b.channel, text},
	})
}

func (b *Bot) messageNick(nick, text string) error {
	return b.writeMessage(irc.Message{
		Command: "PRIVMSG",
		Params:  []string{nick, text},
	})
}

// writeMessage writes an IRC message to the connection.
func (b *Bot) writeMessage(m irc.Message) error {
	buf, err := m.Encode()
	if err != nil && err != irc.ErrTruncated {
		return errors.Wrap(err, "unable to encode message")
	}

	if err := b.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return errors.Wrap(err, "unable to set deadline")
	}

	if _, err := b.rw.WriteString(buf); err != nil {
		return errors.Wrap(err, "error writing")
	}

	if err := b.rw.Flush(); err != nil {
		return errors.Wrap(err, "flush error")
	}

	log.Printf("Sent: %s", strings.TrimRight(buf, "\r\n"))
	return nil
}

// readMessage reads a line from the connection and parses it as an IRC
// message.
func (b *Bot) readMessage() (irc.Message, error) {
	line, err := b.rw.ReadString('\n')
	if err != nil {
		return irc.Message{}, errors.Wrap(err, "error reading")
	}

	log.Printf("Received: %s", strings.TrimRight(line, "\r\n"))

	m, err := irc.ParseMessage(line)
	if err != nil && err != irc.ErrTruncated {
		return irc.Message{}, errors.Wrapf(err, "unable to parse message: %s",
			line)
	}

	return m, nil
}

const (
	replyNamReply = "353"
	replyTopic    = "332"
	replyNoTopic  = "331"
)

// parseNamReply pulls the nicknames out of a 353 reply. The member list is
// the trailing parameter, space separated.
func parseNamReply(m irc.Message) []string {
	if len(m.Params) == 0 {
		return nil
	}
	return strings.Fields(m.Params[len(m.Params)-1])
}

// parseRenameNotice recognizes the server's collision rename NOTICE and
// extracts the new nickname.
func parseRenameNotice(text string) (string, bool) {
	const prefix = "Your nickname was changed to "
	if !strings.HasPrefix(text, prefix) {
		return "", false
	}

	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func lastParam(m irc.Message) string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}
