package notification

// Counter names one of the three headline unread counters.
type Counter string

const (
	CounterSocial   Counter = "social"
	CounterWhisper  Counter = "whisper"
	CounterSoulChat Counter = "soulChat"
)

// ChatKind is the thread flavour used by mark-thread-read.
type ChatKind string

const (
	ChatWhisper  ChatKind = "whisper"
	ChatSoulChat ChatKind = "soulChat"
)

// ParseChatKind accepts the wire names plus a couple of aliases.
func ParseChatKind(s string) (ChatKind, bool) {
	switch s {
	case "whisper", "whispers":
		return ChatWhisper, true
	case "soulChat", "soul_chat", "soul-chat", "soulchat":
		return ChatSoulChat, true
	}
	return "", false
}

// Counter returns the unread counter a thread of this kind contributes to.
func (k ChatKind) Counter() Counter {
	if k == ChatSoulChat {
		return CounterSoulChat
	}
	return CounterWhisper
}

// UnreadCounters holds the three independently updated counters. Every value
// is kept >= 0.
type UnreadCounters struct {
	Social          int `json:"social"`
	WhisperThreads  int `json:"whisperThreads"`
	SoulChatThreads int `json:"soulChatThreads"`
}

// Get returns the named counter.
func (c UnreadCounters) Get(name Counter) int {
	switch name {
	case CounterSocial:
		return c.Social
	case CounterWhisper:
		return c.WhisperThreads
	case CounterSoulChat:
		return c.SoulChatThreads
	}
	return 0
}

// Add changes the named counter by delta, clamping at zero.
func (c *UnreadCounters) Add(name Counter, delta int) {
	switch name {
	case CounterSocial:
		c.Social = clamp(c.Social + delta)
	case CounterWhisper:
		c.WhisperThreads = clamp(c.WhisperThreads + delta)
	case CounterSoulChat:
		c.SoulChatThreads = clamp(c.SoulChatThreads + delta)
	}
}

// Increment adds one to the named counter.
func (c *UnreadCounters) Increment(name Counter) { c.Add(name, 1) }

// Decrement removes one from the named counter, never going below zero.
func (c *UnreadCounters) Decrement(name Counter) { c.Add(name, -1) }

// Set overwrites the named counter.
func (c *UnreadCounters) Set(name Counter, v int) {
	switch name {
	case CounterSocial:
		c.Social = clamp(v)
	case CounterWhisper:
		c.WhisperThreads = clamp(v)
	case CounterSoulChat:
		c.SoulChatThreads = clamp(v)
	}
}

// Total sums all counters.
func (c UnreadCounters) Total() int {
	return c.Social + c.WhisperThreads + c.SoulChatThreads
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// SocialCounts is GET /notifications/unread-count/social.
type SocialCounts struct {
	Follows  int `json:"follows"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

// Total is the social headline number.
func (s SocialCounts) Total() int {
	return s.Follows + s.Likes + s.Comments
}

// ThreadCounts is GET /notifications/unread-count/threads.
type ThreadCounts struct {
	Whisper  int `json:"whisper"`
	SoulChat int `json:"soulChat"`
}

// CountsUpdate is the unread_counts_update push payload. Absent fields are
// left untouched.
type CountsUpdate struct {
	Social   *int `json:"social,omitempty"`
	Follows  *int `json:"follows,omitempty"`
	Likes    *int `json:"likes,omitempty"`
	Comments *int `json:"comments,omitempty"`
	Whisper  *int `json:"whisper,omitempty"`
	SoulChat *int `json:"soulChat,omitempty"`
}

// Apply overwrites the counters present in the update.
func (u CountsUpdate) Apply(c *UnreadCounters) {
	switch {
	case u.Social != nil:
		c.Set(CounterSocial, *u.Social)
	case u.Follows != nil || u.Likes != nil || u.Comments != nil:
		c.Set(CounterSocial, deref(u.Follows)+deref(u.Likes)+deref(u.Comments))
	}
	if u.Whisper != nil {
		c.Set(CounterWhisper, *u.Whisper)
	}
	if u.SoulChat != nil {
		c.Set(CounterSoulChat, *u.SoulChat)
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
