// tgxp-bridge - A bridge between Telegram-style chat groups and XMPP-style
// federated rooms.
// Copyright (C) 2026 tgxp-bridge contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package model holds the value types shared between the TG and XP sides of
// the bridge: the address of a bridged chat, the sender of an event, and the
// Forwardable hierarchy the dispatcher and chat handlers operate on.
package model

import "context"

// Chat identifies one side of a bridged pairing. Address is the network's
// native room/chat identifier (a Telegram chat id, or an XMPP MUC JID);
// TopicID is non-nil only for Telegram forum topics, which share a Chat
// address across topics.
type Chat struct {
	Address string
	TopicID *string
}

// Key returns a string uniquely identifying the chat, topic included. The
// dispatcher's handler map is keyed by Address alone, not by Key.
func (c Chat) Key() string {
	if c.TopicID == nil {
		return c.Address
	}
	return c.Address + "#" + *c.TopicID
}

// Sender identifies the author of a forwarded event on the originating
// network, independent of how that network represents users internally.
type Sender struct {
	Name string
	ID   string
}

// Forwardable is the common shape of everything the dispatcher can route: it
// always carries the destination Chat. Concrete variants embed Forwardable
// and add their own payload, mirroring a sum type via struct embedding.
type Forwardable struct {
	Chat Chat
}

// UnbridgeEvent tears down a pairing. The dispatcher handles it synchronously
// and removes the chat from both sides' handler maps and from storage.
type UnbridgeEvent struct {
	Forwardable
}

// Event is a side-effect notification with no reply/edit semantics of its
// own, e.g. a membership change announced on one network and mirrored as a
// plain line of text on the other.
type Event struct {
	Forwardable
	Content string
}

// Message is ordinary chat text, optionally a reply to an earlier message
// and optionally an edit of a message already forwarded. ID is the
// origin-network message identifier; an Edit is addressed by the same ID
// the original send used, so the handler can resolve it to the peer id
// already recorded for that message.
type Message struct {
	Event
	ID     string
	Sender Sender
	Reply  string
	Edit   bool
}

// Attachment is a Message carrying a binary payload. URL is resolved lazily
// via URLCallback so that the dispatcher never has to buffer large file
// bodies it might not need (e.g. the destination only wants metadata).
type Attachment struct {
	Message
	URLCallback func(ctx context.Context) (string, error)
	Filename    string
	MIME        string
	Size        int64
}

// Sticker is an Attachment that additionally carries the origin network's
// sticker identifier, used as the cache key for already-uploaded sticker
// URLs on the destination network.
type Sticker struct {
	Attachment
	FileID string
}

// ChatHandler is the per-chat, per-destination-network sink a ChatHandler
// factory produces once a pairing is bound. Every method is addressed
// implicitly to the Chat the handler was created for.
type ChatHandler interface {
	// Address returns the destination-network chat address this handler
	// was created for.
	Address() string

	SendMessage(ctx context.Context, msg *Message) error
	EditMessage(ctx context.Context, msg *Message) error
	SendEvent(ctx context.Context, event *Event) error
	SendAttachment(ctx context.Context, att *Attachment) error
	SendSticker(ctx context.Context, sticker *Sticker) error
	Unbridge(ctx context.Context) error
}

// ChatHandlerFactory constructs ChatHandlers for a newly bound pairing. Each
// network side (TG, XP) registers its own factory with the chat service.
type ChatHandlerFactory interface {
	CreateHandler(ctx context.Context, address string, muc string) (ChatHandler, error)
}
