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
	"container/list"
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type poolEntry struct {
	senderID string
	actor    *Actor
}

// ActorPool is the bounded LRU pool of per-sender impersonation sessions:
// one XMPP session per TG sender, logged in as the same account with a
// distinct resource, so the sender's messages appear to come from them.
type ActorPool struct {
	login, password, host string
	sizeLimit             int
	listener              *Actor
	log                   zerolog.Logger

	mu    sync.Mutex
	ll    *list.List
	index map[string]*list.Element
}

// NewActorPool creates a pool bounded by sizeLimit, falling back to
// listener when provisioning a new actor fails.
func NewActorPool(host, login, password string, sizeLimit int, listener *Actor, log zerolog.Logger) *ActorPool {
	return &ActorPool{
		host: host, login: login, password: password,
		sizeLimit: sizeLimit,
		listener:  listener,
		log:       log.With().Str("component", "actor_pool").Logger(),
		ll:        list.New(),
		index:     make(map[string]*list.Element),
	}
}

// GetActor returns the actor impersonating senderID in room, creating and
// joining a new one if necessary. It falls back to the listener session if
// provisioning or joining fails.
func (p *ActorPool) GetActor(ctx context.Context, senderID, senderName, room string) *Actor {
	p.mu.Lock()
	if el, ok := p.index[senderID]; ok {
		p.ll.MoveToFront(el)
		actor := el.Value.(*poolEntry).actor
		p.mu.Unlock()
		if actor.Joined(room) {
			return actor
		}
		if err := actor.Join(ctx, room); err != nil {
			p.log.Warn().Err(err).Str("room", room).Msg("actor failed to join room, falling back to listener")
			return p.listener
		}
		return actor
	}
	p.mu.Unlock()

	resource := actorResource(senderName)
	actor := NewActor(func() (Transport, error) {
		return Dial(DialOptions{Host: p.host, User: p.login, Password: p.password, Resource: resource})
	}, resource, nil, p.log)

	if err := actor.Start(ctx); err != nil {
		p.log.Error().Err(err).Str("sender_id", senderID).Msg("actor failed to start, falling back to listener")
		return p.listener
	}

	p.mu.Lock()
	el := p.ll.PushFront(&poolEntry{senderID: senderID, actor: actor})
	p.index[senderID] = el
	var evicted *Actor
	if p.ll.Len() > p.sizeLimit {
		oldest := p.ll.Back()
		if oldest != nil {
			entry := oldest.Value.(*poolEntry)
			delete(p.index, entry.senderID)
			p.ll.Remove(oldest)
			evicted = entry.actor
		}
	}
	p.mu.Unlock()

	if evicted != nil {
		_ = evicted.Destroy()
	}

	if err := actor.Join(ctx, room); err != nil {
		p.log.Warn().Err(err).Str("room", room).Msg("new actor failed to join room, falling back to listener")
		return p.listener
	}
	return actor
}

// Leave makes every pooled actor leave room - used on Unbridge. The
// listener leaves separately, from its own Unbridge handling.
func (p *ActorPool) Leave(room string) {
	p.mu.Lock()
	actors := make([]*Actor, 0, p.ll.Len())
	for el := p.ll.Front(); el != nil; el = el.Next() {
		actors = append(actors, el.Value.(*poolEntry).actor)
	}
	p.mu.Unlock()

	for _, a := range actors {
		_ = a.Leave(room)
	}
}
