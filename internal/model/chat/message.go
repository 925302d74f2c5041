package chat

import "time"

// Sender identifies who produced a turn.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Label is the prefix a transcript line is rendered with.
func (s Sender) Label() string {
	switch s {
	case SenderUser:
		return "You:"
	case SenderBot:
		return "Bot:"
	default:
		return "System:"
	}
}

// ErrorKind classifies why a send produced a system message instead of a reply.
type ErrorKind string

const (
	ErrorTransport ErrorKind = "transport"
	ErrorStatus    ErrorKind = "status"
	ErrorMalformed ErrorKind = "malformed"
)

// Source is a supporting passage the remote service cited for a reply.
type Source struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message is one turn of the transcript. It is never mutated once appended.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Sources   []Source  `json:"sources,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserMessage builds an unsaved user turn.
func UserMessage(text string) Message {
	return Message{Sender: SenderUser, Text: text}
}

// BotMessage builds an unsaved reply turn.
func BotMessage(text string, sources []Source) Message {
	return Message{Sender: SenderBot, Text: text, Sources: sources}
}

// SystemMessage builds an unsaved error turn.
func SystemMessage(kind ErrorKind, text string) Message {
	return Message{Sender: SenderSystem, Text: text, ErrorKind: kind}
}

// IsError reports whether the message records a failed send.
func (m Message) IsError() bool {
	return m.Sender == SenderSystem && m.ErrorKind != ""
}
