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

package xmpp

import (
	"context"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/chatservice"
	"github.com/nettlebridge/tgxp/internal/dispatcher"
	"github.com/nettlebridge/tgxp/internal/model"
)

// bridgeIdentityMarker suffixes every impersonation actor's resource; the
// listener uses it to recognize and drop its own forwarded messages coming
// back around the room.
const bridgeIdentityMarker = " (Telegram)"

// Listener is the bridge's own long-running XP session: it joins every
// bridged room, completes the invitation handshake, and turns inbound
// groupchat messages into forwardables for the dispatcher.
type Listener struct {
	actor       *Actor
	displayName string
	dispatcher  *dispatcher.Dispatcher
	chatService *chatservice.Service
	log         zerolog.Logger

	ctx context.Context

	mu      sync.Mutex
	leaving map[string]bool // rooms we are leaving on purpose, so the self-unavailable presence isn't read as a kick
}

// NewListener creates the listener session. displayName is both its own
// join nickname and the name used to recognize its own messages echoed back
// by the room.
func NewListener(host, login, password, displayName string, d *dispatcher.Dispatcher, svc *chatservice.Service, log zerolog.Logger) *Listener {
	log = log.With().Str("component", "xmpp_listener").Logger()
	l := &Listener{
		displayName: displayName,
		dispatcher:  d,
		chatService: svc,
		log:         log,
		leaving:     make(map[string]bool),
	}
	l.actor = NewActor(func() (Transport, error) {
		return Dial(DialOptions{Host: host, User: login, Password: password, Resource: displayName})
	}, displayName, l.handleStanza, log)
	return l
}

// Run starts the listener session and joins every already-bound room, then
// blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.ctx = ctx
	if err := l.actor.Start(ctx); err != nil {
		return err
	}
	for _, room := range l.chatService.BoundRooms() {
		if err := l.actor.Join(ctx, room); err != nil {
			l.log.Error().Err(err).Str("room", room).Msg("join bound room at startup")
		}
	}
	<-ctx.Done()
	return l.actor.Destroy()
}

// Join makes the listener join room - called by the XP factory whenever a
// new pairing is bound, so the listener is present in every bridged room,
// not only the ones it knew about at startup.
func (l *Listener) Join(ctx context.Context, room string) error {
	return l.actor.Join(ctx, room)
}

// Leave makes the listener leave room, used when a pairing is unbound.
func (l *Listener) Leave(room string) error {
	l.mu.Lock()
	l.leaving[room] = true
	l.mu.Unlock()
	return l.actor.Leave(room)
}

// Actor exposes the underlying session for the outbound handler's
// SendEvent/Unbridge, which must be sent from the listener rather than an
// impersonation actor.
func (l *Listener) Actor() *Actor {
	return l.actor
}

func (l *Listener) handleStanza(stanza InboundStanza) {
	switch stanza.Type {
	case "invite":
		room, _ := splitJID(stanza.From)
		l.chatService.Bind(l.ctx, room, stanza.Reason)
	case "groupchat":
		l.handleGroupchat(stanza)
	case "presence":
		l.handlePresence(stanza)
	case "error":
		l.log.Warn().Str("from", stanza.From).Str("error", stanza.ErrorText).Msg("groupchat error")
	}
}

// handlePresence watches for the bridge's own occupant going unavailable in
// a bridged room it did not choose to leave - the room kicked us, which
// unbridges the pairing from the XP side.
func (l *Listener) handlePresence(stanza InboundStanza) {
	if stanza.PresenceType != "unavailable" {
		return
	}
	room, resource := splitJID(stanza.From)
	if resource != l.displayName {
		return
	}

	l.mu.Lock()
	wasLeaving := l.leaving[room]
	delete(l.leaving, room)
	l.mu.Unlock()
	if wasLeaving {
		return
	}

	tgChatID, ok := l.chatService.ChatForMUC(room)
	if !ok {
		return
	}
	l.actor.Forget(room)
	l.log.Info().Str("room", room).Msg("removed from room, unbridging")
	_ = l.dispatcher.Enqueue(l.ctx, &model.UnbridgeEvent{
		Forwardable: model.Forwardable{Chat: model.Chat{Address: strconv.FormatInt(tgChatID, 10)}},
	})
}

func (l *Listener) handleGroupchat(stanza InboundStanza) {
	room, resource := splitJID(stanza.From)
	if resource == "" || l.isOwnMessage(resource) {
		return
	}

	tgChatID, ok := l.chatService.ChatForMUC(room)
	if !ok {
		return
	}
	chat := model.Chat{Address: strconv.FormatInt(tgChatID, 10)}
	sender := model.Sender{Name: resource, ID: resource}

	// Rooms without stable stanza ids don't annotate messages; mint one so
	// the message still gets a usable cross-network identity.
	if stanza.StanzaID == "" {
		stanza.StanzaID = newStanzaID()
	}

	if stanza.OOBURL != "" {
		url := stanza.OOBURL
		fw := &model.Attachment{
			Message: model.Message{
				Event:  model.Event{Forwardable: model.Forwardable{Chat: chat}},
				ID:     stanza.StanzaID,
				Sender: sender,
			},
			Filename:    path.Base(url),
			URLCallback: func(ctx context.Context) (string, error) { return url, nil },
		}
		_ = l.dispatcher.Enqueue(l.ctx, fw)
		return
	}

	reply, body := parseReply(stanza.Body)
	msg := &model.Message{
		Event:  model.Event{Forwardable: model.Forwardable{Chat: chat}, Content: body},
		ID:     stanza.StanzaID,
		Sender: sender,
		Reply:  reply,
	}
	if stanza.ReplaceID != "" {
		msg.Edit = true
		msg.ID = stanza.ReplaceID
	}
	_ = l.dispatcher.Enqueue(l.ctx, msg)
}

// isOwnMessage recognizes the bridge's own identity on the room roster: any
// impersonation actor's resource (which always ends in the marker) or the
// listener's own display name.
func (l *Listener) isOwnMessage(resource string) bool {
	return resource == l.displayName || strings.HasSuffix(resource, bridgeIdentityMarker)
}

// splitJID splits a full JID "room@service/resource" into its bare room
// address and resource part (empty if there is none).
func splitJID(jid string) (room, resource string) {
	if i := strings.Index(jid, "/"); i >= 0 {
		return jid[:i], jid[i+1:]
	}
	return jid, ""
}
