package persist

import "time"

// Channel binds a conversation to a preset and the identity names that feed
// the built-in {{char}} and {{user}} macros.
type Channel struct {
	ID        string
	Preset    string
	CharName  string
	UserName  string
	Prefill   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is one stored history message.
type ChatMessage struct {
	ID         int64
	ChannelID  string
	Role       string // "user" | "assistant"
	Content    string
	Summarized bool
	CreatedAt  time.Time
}

// Summary is one compressed block covering a span of history. The pipeline
// consumes its content as opaque text.
type Summary struct {
	ID          int64
	ChannelID   string
	Content     string
	CoversUntil int64 // highest message ID folded into this block
	CreatedAt   time.Time
}

// Macro is one named variable in the global or a channel scope.
type Macro struct {
	Scope     string // "global" | "channel"
	ChannelID string // empty for global scope
	Name      string
	Value     string
	UpdatedAt time.Time
}
