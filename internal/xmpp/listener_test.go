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
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nettlebridge/tgxp/internal/chatservice"
	"github.com/nettlebridge/tgxp/internal/dispatcher"
	"github.com/nettlebridge/tgxp/internal/model"
	"github.com/nettlebridge/tgxp/internal/store"
)

type unbridgeCounter struct {
	address string
	count   atomic.Int32
}

func (h *unbridgeCounter) Address() string                                         { return h.address }
func (h *unbridgeCounter) SendMessage(context.Context, *model.Message) error       { return nil }
func (h *unbridgeCounter) EditMessage(context.Context, *model.Message) error       { return nil }
func (h *unbridgeCounter) SendEvent(context.Context, *model.Event) error           { return nil }
func (h *unbridgeCounter) SendAttachment(context.Context, *model.Attachment) error { return nil }
func (h *unbridgeCounter) SendSticker(context.Context, *model.Sticker) error       { return nil }
func (h *unbridgeCounter) Unbridge(context.Context) error {
	h.count.Add(1)
	return nil
}

func newKickFixture(t *testing.T) (*Listener, *dispatcher.Dispatcher, *unbridgeCounter) {
	t.Helper()
	log := zerolog.New(os.Stderr)
	s, err := store.Open(filepath.Join(t.TempDir(), "bridge.db"), log)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	svc := chatservice.New(log, s.Chats, "s3cr3t")
	d := dispatcher.New(log, svc.Unbind)
	l := NewListener("xmpp.example.org:5222", "bridge@example.org", "pw", "bridge@example.org", d, svc, log)
	l.ctx = context.Background()

	svc.Pending("room@conf.example.org", -100123)
	svc.Bind(context.Background(), "room@conf.example.org", "s3cr3t")

	h := &unbridgeCounter{address: "-100123"}
	d.Register("-100123", h)
	return l, d, h
}

func TestPresenceKickUnbridgesPairing(t *testing.T) {
	l, d, h := newKickFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	l.handleStanza(InboundStanza{
		Type:         "presence",
		PresenceType: "unavailable",
		From:         "room@conf.example.org/bridge@example.org",
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && h.count.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, int32(1), h.count.Load())
	require.False(t, d.Bound("-100123"))
	require.False(t, d.Bound("room@conf.example.org"))
}

func TestPresenceVoluntaryLeaveDoesNotUnbridge(t *testing.T) {
	l, d, h := newKickFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	l.mu.Lock()
	l.leaving["room@conf.example.org"] = true
	l.mu.Unlock()

	l.handleStanza(InboundStanza{
		Type:         "presence",
		PresenceType: "unavailable",
		From:         "room@conf.example.org/bridge@example.org",
	})

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), h.count.Load())
}

func TestPresenceFromOtherOccupantIgnored(t *testing.T) {
	l, _, h := newKickFixture(t)

	l.handleStanza(InboundStanza{
		Type:         "presence",
		PresenceType: "unavailable",
		From:         "room@conf.example.org/someone-else",
	})

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), h.count.Load())
}
