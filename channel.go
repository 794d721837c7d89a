package main

import "sync"

// Channel holds everything to do with a channel: its members, its topic, and
// its ban/mute lists.
//
// If we have zero members, we should not exist. The Server enforces that by
// dropping a Channel from its index once the last member leaves.
type Channel struct {
	// Name begins with #.
	Name string

	// mu guards the fields below. Lock order is Server then Channel then
	// Session; nothing ever holds two Channel locks at once.
	mu sync.Mutex

	// Session id to Session.
	members map[uint64]*Session

	// Current topic. May be blank.
	topic string

	// Ban and mute lists, keyed by nickname. A ban does not survive the
	// target changing nicks. Deliberate: there is no stable identity to key
	// on.
	banned map[string]struct{}
	muted  map[string]struct{}
}

// NewChannel creates a Channel.
func NewChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		members: make(map[uint64]*Session),
		banned:  make(map[string]struct{}),
		muted:   make(map[string]struct{}),
	}
}

// join adds a session to the channel. Joining twice is a no-op.
func (c *Channel) join(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[s.ID] = s
}

// part removes a session from the channel. Parting a channel the session is
// not in is a no-op.
func (c *Channel) part(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, s.ID)
}

func (c *Channel) hasMember(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.members[s.ID]
	return exists
}

// findMember returns the member session with the given nickname, if any.
func (c *Channel) findMember(nick string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, member := range c.members {
		if member.Nick() == nick {
			return member
		}
	}
	return nil
}

// memberSessions returns a snapshot of the member set. Callers send to the
// snapshot without holding the channel lock.
func (c *Channel) memberSessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := make([]*Session, 0, len(c.members))
	for _, member := range c.members {
		members = append(members, member)
	}
	return members
}

// memberNicks returns the nicknames of every member, for NAMES replies.
func (c *Channel) memberNicks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	nicks := make([]string, 0, len(c.members))
	for _, member := range c.members {
		nicks = append(nicks, member.Nick())
	}
	return nicks
}

// broadcast sends a line to every member except exclude. Pass nil to reach
// everyone. The member list is copied under the lock; the sends happen
// unlocked so a slow client cannot stall the channel.
func (c *Channel) broadcast(line string, exclude *Session) {
	c.sendTo(c.memberSessions(), line, exclude)
}

// sendTo delivers one line to a member snapshot taken earlier. Removal
// paths snapshot before the mutation so the leaver still hears it.
func (c *Channel) sendTo(members []*Session, line string, exclude *Session) {
	for _, member := range members {
		if member == exclude {
			continue
		}
		// A failed send marks the session for teardown. Nothing to do here.
		_ = member.send(line)
	}
}

func (c *Channel) isEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members) == 0
}

func (c *Channel) isBanned(nick string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.banned[nick]
	return exists
}

func (c *Channel) isMuted(nick string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.muted[nick]
	return exists
}

// ban adds a nickname to the ban list. The caller is responsible for force
// parting any member with that nickname; see Server.modeCommand.
func (c *Channel) ban(nick string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banned[nick] = struct{}{}
}

func (c *Channel) unban(nick string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.banned, nick)
}

func (c *Channel) mute(nick string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted[nick] = struct{}{}
}

func (c *Channel) unmute(nick string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.muted, nick)
}

// Topic returns the channel topic and whether one is set.
func (c *Channel) Topic() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic, c.topic != ""
}

func (c *Channel) setTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = topic
}
