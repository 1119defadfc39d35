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
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
)

const (
	// sessionStartTimeout bounds how long Start waits for the session to
	// come up before giving up.
	sessionStartTimeout = 15 * time.Second
	// joinRetries bounds how many times Join retries a failed MUC join.
	joinRetries = 5

	notAnOccupantError = "Only occupants are allowed to send messages to the conference"
)

// Actor is one logged-in XMPP session: either the bridge's own listener
// account or one of its per-sender impersonation sessions. It owns the
// reconnect-on-disconnect and rejoin-on-occupant-error discipline every
// session in the bridge needs.
type Actor struct {
	dial     func() (Transport, error)
	resource string
	onStanza func(InboundStanza)
	log      zerolog.Logger

	mu            sync.Mutex
	transport     Transport
	reconnecting  bool
	tornDown      bool
	joinedRooms   map[string]bool
	sessionStartC chan struct{}
}

// NewActor creates an Actor. dial opens a fresh connection; it's called
// again on every (re)connect. onStanza, if non-nil, is invoked with every
// stanza the session receives - only the listener's actor uses this, to
// turn inbound room traffic into forwardables; pool actors pass nil since
// they never receive anything interesting (impersonation sessions only
// send).
func NewActor(dial func() (Transport, error), resource string, onStanza func(InboundStanza), log zerolog.Logger) *Actor {
	return &Actor{
		dial:        dial,
		resource:    resource,
		onStanza:    onStanza,
		log:         log.With().Str("resource", resource).Logger(),
		joinedRooms: make(map[string]bool),
	}
}

// Start connects the session and waits up to sessionStartTimeout for it to
// come up, then launches the background receive loop that drives
// reconnect-on-disconnect.
func (a *Actor) Start(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}

	select {
	case <-a.awaitStart():
		return nil
	case <-time.After(sessionStartTimeout):
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) awaitStart() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessionStartC == nil {
		a.sessionStartC = make(chan struct{})
	}
	return a.sessionStartC
}

func (a *Actor) connect(ctx context.Context) error {
	transport, err := a.dial()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.transport = transport
	wasReconnecting := a.reconnecting
	rooms := make([]string, 0, len(a.joinedRooms))
	for r := range a.joinedRooms {
		rooms = append(rooms, r)
	}
	a.mu.Unlock()

	_ = transport.Roster()
	a.onSessionStart()

	if wasReconnecting {
		for _, room := range rooms {
			_ = a.Join(ctx, room)
		}
	}

	go a.receiveLoop(ctx)
	return nil
}

func (a *Actor) onSessionStart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reconnecting = false
	if a.sessionStartC == nil {
		a.sessionStartC = make(chan struct{})
	}
	select {
	case <-a.sessionStartC:
		// already closed
	default:
		close(a.sessionStartC)
	}
}

// receiveLoop drains inbound stanzas until the transport errors out
// (disconnect), at which point it triggers the reconnect discipline unless
// the actor was explicitly torn down.
func (a *Actor) receiveLoop(ctx context.Context) {
	for {
		stanza, err := a.current().Recv()
		if err != nil {
			a.handleDisconnect(ctx)
			return
		}
		if stanza.Type == "error" && strings.Contains(stanza.ErrorText, notAnOccupantError) {
			a.log.Warn().Str("room", stanza.From).Msg("rejoining room after occupant error")
			_ = a.Join(ctx, stanza.From)
		}
		if a.onStanza != nil {
			a.onStanza(stanza)
		}
	}
}

func (a *Actor) current() Transport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transport
}

func (a *Actor) handleDisconnect(ctx context.Context) {
	a.mu.Lock()
	if a.tornDown {
		a.mu.Unlock()
		return
	}
	a.reconnecting = true
	a.sessionStartC = make(chan struct{})
	a.mu.Unlock()

	select {
	case <-time.After(reconnectDelay):
	case <-ctx.Done():
		return
	}

	if err := a.connect(ctx); err != nil {
		a.log.Error().Err(err).Msg("reconnect failed")
	}
}

// Join joins room, retrying up to joinRetries times.
func (a *Actor) Join(ctx context.Context, room string) error {
	operation := func() error {
		transport := a.current()
		if transport == nil {
			return backoff.Permanent(errors.New("session not connected"))
		}
		return transport.JoinMUCNoHistory(room, a.resource)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), joinRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}

	a.mu.Lock()
	a.joinedRooms[room] = true
	a.mu.Unlock()
	return nil
}

// Joined reports whether the actor currently tracks room as joined.
func (a *Actor) Joined(room string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.joinedRooms[room]
}

// Forget drops room from the rejoin-on-reconnect set without sending any
// presence - used when the room already removed us.
func (a *Actor) Forget(room string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.joinedRooms, room)
}

// SendGroupchat sends a groupchat message to room.
func (a *Actor) SendGroupchat(room, stanzaID, body, replaceID, oobURL string) error {
	return a.current().SendGroupchat(room, stanzaID, body, replaceID, oobURL)
}

// Leave makes the actor leave room without tearing the session down.
func (a *Actor) Leave(room string) error {
	a.mu.Lock()
	delete(a.joinedRooms, room)
	a.mu.Unlock()
	return a.current().LeaveMUC(room, a.resource)
}

// Destroy tears the session down for good; no further reconnect is
// attempted.
func (a *Actor) Destroy() error {
	a.mu.Lock()
	a.tornDown = true
	a.reconnecting = false
	transport := a.transport
	a.mu.Unlock()

	if transport == nil {
		return nil
	}
	return transport.Close()
}
