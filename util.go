package main

import "strings"

// 50 from RFC.
const maxChannelLength = 50

// Arbitrary. Something low enough we won't hit the message limit.
const maxTopicLength = 300

// Arbitrary. The RFC says nine; nobody enforces that.
const maxNickLength = 30

// isValidChannel checks a channel name for validity. A channel name must
// begin with # and contain nothing that would break message framing.
func isValidChannel(c string) bool {
	if len(c) < 2 || len(c) > maxChannelLength {
		return false
	}

	if c[0] != '#' {
		return false
	}

	return !strings.ContainsAny(c, " ,\x00\r\n")
}

// isValidNick checks a nickname for validity. A nickname must not look like
// a channel or a prefix, must not collide with the * placeholder, and must
// not contain anything that would break message framing.
func isValidNick(n string) bool {
	if len(n) == 0 || len(n) > maxNickLength {
		return false
	}

	if n[0] == '#' || n[0] == ':' {
		return false
	}

	return !strings.ContainsAny(n, " ,*?!@\x00\r\n")
}

// truncateTopic keeps topics within bounds.
func truncateTopic(topic string) string {
	if len(topic) > maxTopicLength {
		return topic[:maxTopicLength]
	}
	return topic
}
