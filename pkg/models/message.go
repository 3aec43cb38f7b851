package models

import "fmt"

// ChannelType represents a messaging platform.
type ChannelType string

const (
	ChannelDiscord ChannelType = "discord"
)

// ServiceDiscord is the service name carried in Discord source identities.
const ServiceDiscord = "Discord"

// Direction indicates if a message is inbound or outbound.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageType selects how outbound chat text is wrapped for the backend.
type MessageType string

const (
	// MessageNormal is plain chat text.
	MessageNormal MessageType = "normal"
	// MessageAction is an emote, rendered in italics.
	MessageAction MessageType = "action"
	// MessageMonster is preformatted game output, rendered in a code block.
	MessageMonster MessageType = "monster"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageNormal, MessageAction, MessageMonster:
		return true
	default:
		return false
	}
}

// SourceIdent identifies a chat destination across reconnects and renames.
type SourceIdent struct {
	Service string `json:"service"`
	ID      string `json:"id"`
}

// String returns "service:id".
func (s SourceIdent) String() string {
	return fmt.Sprintf("%s:%s", s.Service, s.ID)
}

// IsZero reports whether the identity is empty.
func (s SourceIdent) IsZero() bool {
	return s.Service == "" && s.ID == ""
}
