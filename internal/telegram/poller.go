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

package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/chatservice"
	"github.com/nettlebridge/tgxp/internal/dispatcher"
	"github.com/nettlebridge/tgxp/internal/model"
	"github.com/nettlebridge/tgxp/internal/store"
)

// pairCommand is the TG-side command that starts the handshake: it pairs
// the chat it's sent in with the XP room address given as its argument.
const pairCommand = "/bridge"

// Poller runs the TG long-polling update loop, pattern-matching each update
// into the bridge's domain forwardables.
type Poller struct {
	client      *Client
	token       string
	dispatcher  *dispatcher.Dispatcher
	chatService *chatservice.Service
	topics      *store.TopicStore
	log         zerolog.Logger

	bridgeXPAddress string
}

// NewPoller creates a Poller. bridgeXPAddress is reported back to users who
// run the pair command, so they know what to invite on the XP side.
func NewPoller(client *Client, token string, d *dispatcher.Dispatcher, svc *chatservice.Service, topics *store.TopicStore, bridgeXPAddress string, log zerolog.Logger) *Poller {
	return &Poller{
		client:          client,
		token:           token,
		dispatcher:      d,
		chatService:     svc,
		topics:          topics,
		bridgeXPAddress: bridgeXPAddress,
		log:             log.With().Str("component", "telegram_poller").Logger(),
	}
}

// Run polls getUpdates forever until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error().Err(err).Msg("getUpdates failed")
			continue
		}
		if len(updates) == 0 {
			continue
		}

		for _, u := range updates {
			p.handleUpdate(ctx, u)
		}
		offset = updates[len(updates)-1].UpdateID + 1
	}
}

func (p *Poller) handleUpdate(ctx context.Context, u Update) {
	switch {
	case u.Message != nil:
		p.handleIncomingMessage(ctx, u.Message, false)
	case u.EditedMessage != nil:
		p.handleIncomingMessage(ctx, u.EditedMessage, true)
	case u.MyChatMember != nil && u.MyChatMember.NewChatMember.Status == "left":
		muc, ok := p.chatService.MUCForChat(u.MyChatMember.Chat.ID)
		if !ok {
			return
		}
		_ = p.dispatcher.Enqueue(ctx, &model.UnbridgeEvent{Forwardable: model.Forwardable{Chat: model.Chat{Address: muc}}})
	}
}

func (p *Poller) handleIncomingMessage(ctx context.Context, msg *Message, edit bool) {
	if msg.Chat.Type != "group" && msg.Chat.Type != "supergroup" {
		return
	}
	address := strconv.FormatInt(msg.Chat.ID, 10)

	if !p.dispatcher.Bound(address) {
		if !edit {
			p.handlePairCommand(ctx, msg, address)
		}
		return
	}

	p.processMessage(ctx, msg, address, edit)
}

func (p *Poller) handlePairCommand(ctx context.Context, msg *Message, address string) {
	if !strings.HasPrefix(msg.Text, pairCommand+" ") {
		return
	}
	room := strings.TrimSpace(strings.TrimPrefix(msg.Text, pairCommand+" "))
	if !looksLikeXPAddress(room) {
		p.reply(ctx, msg.Chat.ID, "That doesn't look like a valid room address. Usage: "+pairCommand+" room@conference.example.org")
		return
	}

	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return
	}
	p.chatService.Pending(room, chatID)
	p.reply(ctx, msg.Chat.ID, "Invite "+p.bridgeXPAddress+" to "+room+" with reason \"<the shared key>\" to finish pairing.")
}

// looksLikeXPAddress is a minimal shape check: local@domain, optionally with
// a resource part.
func looksLikeXPAddress(addr string) bool {
	at := strings.Index(addr, "@")
	return at > 0 && at < len(addr)-1
}

func (p *Poller) reply(ctx context.Context, chatID int64, text string) {
	_, err := p.client.Call(ctx, "sendMessage", map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    text,
	}, nil)
	if err != nil {
		p.log.Error().Err(err).Msg("send canned reply")
	}
}

func (p *Poller) processMessage(ctx context.Context, msg *Message, address string, edit bool) {
	sender := model.Sender{ID: strconv.FormatInt(0, 10), Name: "Unknown"}
	if msg.From != nil {
		sender = model.Sender{ID: strconv.FormatInt(msg.From.ID, 10), Name: msg.From.FirstName}
	}

	muc, ok := p.chatService.MUCForChat(msg.Chat.ID)
	if !ok {
		return
	}

	var topicID *string
	if msg.IsTopicMessage && msg.MessageThreadID != 0 {
		t := strconv.FormatInt(msg.MessageThreadID, 10)
		topicID = &t
		sender.Name += " [" + p.resolveTopicName(ctx, msg, address) + "]"
	}

	chat := model.Chat{Address: muc, TopicID: topicID}
	reply := replyText(msg)

	if att, ok := extractAttachment(msg); ok {
		base := model.Message{
			Event: model.Event{
				Forwardable: model.Forwardable{Chat: chat},
				Content:     msg.Caption,
			},
			ID:     strconv.FormatInt(msg.MessageID, 10),
			Sender: sender,
			Reply:  reply,
			Edit:   edit,
		}
		fw := &model.Attachment{
			Message:  base,
			Filename: att.filename,
			MIME:     att.mime,
			Size:     att.size,
			URLCallback: func(ctx context.Context) (string, error) {
				return fileURL(ctx, p.client, p.token, att.fileID)
			},
		}
		if att.sticker {
			_ = p.dispatcher.Enqueue(ctx, &model.Sticker{Attachment: *fw, FileID: att.fileID})
		} else {
			_ = p.dispatcher.Enqueue(ctx, fw)
		}
		return
	}

	text := forwardOriginPrefix(msg) + msg.Text
	_ = p.dispatcher.Enqueue(ctx, &model.Message{
		Event: model.Event{
			Forwardable: model.Forwardable{Chat: chat},
			Content:     text,
		},
		ID:     strconv.FormatInt(msg.MessageID, 10),
		Sender: sender,
		Reply:  reply,
		Edit:   edit,
	})
}

// resolveTopicName returns the display name of the forum topic msg lives
// in, consulting the topics table first and harvesting the name from the
// topic-created payload (the message's own, or the one on the reply target)
// on a miss. Topics whose creation the bridge never saw stay "Unknown".
func (p *Poller) resolveTopicName(ctx context.Context, msg *Message, address string) string {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return "Unknown"
	}
	if name, ok := p.topics.Get(ctx, chatID, msg.MessageThreadID); ok {
		return name
	}

	harvested := ""
	if msg.ForumTopicCreated != nil {
		harvested = msg.ForumTopicCreated.Name
	} else if msg.ReplyToMessage != nil && msg.ReplyToMessage.ForumTopicCreated != nil {
		harvested = msg.ReplyToMessage.ForumTopicCreated.Name
	}
	if harvested == "" {
		return "Unknown"
	}
	p.topics.Add(ctx, chatID, msg.MessageThreadID, harvested)
	return harvested
}
