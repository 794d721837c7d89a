package main

import (
	"fmt"
	"strings"
)

// Numeric replies the server knows how to send. See RFC 1459 section 6 for
// where the names come from.
const (
	ReplyWelcome       = "001"
	ReplyYourHost      = "002"
	ReplyMyInfo        = "004"
	ReplyChannelModeIs = "324"
	ReplyNoTopic       = "331"
	ReplyTopic         = "332"
	ReplyNamReply      = "353"
	ReplyEndOfNames    = "366"
	ErrorNoSuchNick    = "401"
	ErrorNoSuchChannel = "403"
	ErrorCannotSend    = "404"
	ErrorUnknownCmd    = "421"
	ErrorNoNickGiven   = "431"

	// 433 is in the vocabulary for completeness. We never send it as nick
	// collisions resolve by suffixing (see Server.assignNick).
	ErrorNickInUse = "433"

	ErrorNotOnChannel   = "442"
	ErrorNeedMoreParams = "461"
	ErrorBannedFromCh   = "478"
	ErrorNoPrivileges   = "481"
	ReplyBotAuth        = "900"
)

// The formatters below each produce one complete protocol line, CRLF
// included. Handlers must not alter the shapes. Standard clients parse these
// byte for byte.

func rplWelcome(host, nick string) string {
	return fmt.Sprintf(":%s %s %s :Welcome to the IRC server!\r\n", host,
		ReplyWelcome, nick)
}

func rplYourHost(host, nick string) string {
	return fmt.Sprintf(":%s %s %s :Your host is %s\r\n", host, ReplyYourHost,
		nick, host)
}

func rplMyInfo(host, nick string) string {
	return fmt.Sprintf(":%s %s %s %s\r\n", host, ReplyMyInfo, nick, host)
}

func rplChannelModeIs(host, nick, channel, flag, target string) string {
	return fmt.Sprintf(":%s %s %s %s %s %s\r\n", host, ReplyChannelModeIs, nick,
		channel, flag, target)
}

func rplNoTopic(host, nick, channel string) string {
	return fmt.Sprintf(":%s %s %s %s :No topic is set\r\n", host, ReplyNoTopic,
		nick, channel)
}

func rplTopic(host, nick, channel, topic string) string {
	return fmt.Sprintf(":%s %s %s %s :%s\r\n", host, ReplyTopic, nick, channel,
		topic)
}

func rplNamReply(host, nick, channel string, nicks []string) string {
	return fmt.Sprintf(":%s %s %s = %s :%s\r\n", host, ReplyNamReply, nick,
		channel, strings.Join(nicks, " "))
}

func rplEndOfNames(host, nick, channel string) string {
	return fmt.Sprintf(":%s %s %s %s :End of /NAMES list.\r\n", host,
		ReplyEndOfNames, nick, channel)
}

func rplBotAuth(host, nick string) string {
	return fmt.Sprintf(":%s %s %s :BOT_AUTH_SUCCESS %s\r\n", host, ReplyBotAuth,
		nick, nick)
}

func errNoSuchNick(host, nick, target string) string {
	return fmt.Sprintf(":%s %s %s %s :No such nick/channel\r\n", host,
		ErrorNoSuchNick, nick, target)
}

func errNoSuchChannel(host, nick, channel string) string {
	return fmt.Sprintf(":%s %s %s %s :No such channel\r\n", host,
		ErrorNoSuchChannel, nick, channel)
}

func errCannotSendToChan(host, nick, channel string) string {
	return fmt.Sprintf(":%s %s %s %s :Cannot send to channel\r\n", host,
		ErrorCannotSend, nick, channel)
}

func errUnknownCommand(host, nick, verb string) string {
	return fmt.Sprintf(":%s %s %s %s :Unknown command\r\n", host,
		ErrorUnknownCmd, nick, verb)
}

func errNoNicknameGiven(host, nick string) string {
	return fmt.Sprintf(":%s %s %s :No nickname given\r\n", host,
		ErrorNoNickGiven, nick)
}

func errNotOnChannel(host, nick, channel string) string {
	return fmt.Sprintf(":%s %s %s %s :You're not on that channel\r\n", host,
		ErrorNotOnChannel, nick, channel)
}

func errNeedMoreParams(host, nick, verb string) string {
	return fmt.Sprintf(":%s %s %s %s :Not enough parameters\r\n", host,
		ErrorNeedMoreParams, nick, verb)
}

func errBannedFromChan(host, nick, channel string) string {
	return fmt.Sprintf(":%s %s %s %s :Cannot join channel (banned)\r\n", host,
		ErrorBannedFromCh, nick, channel)
}

func errNoPrivileges(host, nick, channel string) string {
	return fmt.Sprintf(":%s %s %s %s :Permission Denied\r\n", host,
		ErrorNoPrivileges, nick, channel)
}

// Relayed messages. These carry a client prefix rather than the server host.

func joinLine(nick, channel string) string {
	return fmt.Sprintf(":%s JOIN %s\r\n", nick, channel)
}

func partLine(nick, channel string) string {
	return fmt.Sprintf(":%s PART %s\r\n", nick, channel)
}

func privmsgLine(nick, target, text string) string {
	return fmt.Sprintf(":%s PRIVMSG %s :%s\r\n", nick, target, text)
}

func topicLine(nick, channel, topic string) string {
	return fmt.Sprintf(":%s TOPIC %s :%s\r\n", nick, channel, topic)
}

func kickLine(sender, channel, target string) string {
	return fmt.Sprintf(":%s KICK %s %s :Kicked by %s\r\n", sender, channel,
		target, sender)
}

func nickLine(oldNick, newNick string) string {
	return fmt.Sprintf(":%s NICK :%s\r\n", oldNick, newNick)
}

func quitLine(nick string) string {
	return fmt.Sprintf(":%s QUIT :Client Quit\r\n", nick)
}

func noticeNickChanged(host, oldNick, newNick string) string {
	return fmt.Sprintf(
		":%s NOTICE * :Your nickname was changed to %s because %s is already in use\r\n",
		host, newNick, oldNick)
}

func noticeLine(host, nick, text string) string {
	return fmt.Sprintf(":%s NOTICE %s :%s\r\n", host, nick, text)
}
