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
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nettlebridge/tgxp/internal/store"
)

func TestLooksLikeXPAddress(t *testing.T) {
	require.True(t, looksLikeXPAddress("room@conference.example.org"))
	require.False(t, looksLikeXPAddress("no-at-sign"))
	require.False(t, looksLikeXPAddress("@conference.example.org"))
	require.False(t, looksLikeXPAddress("room@"))
}

func newTopicPoller(t *testing.T) (*Poller, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bridge.db"), zerolog.New(os.Stderr))
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return &Poller{topics: s.Topics}, s
}

func TestResolveTopicNameHarvestsFromReplyTarget(t *testing.T) {
	p, s := newTopicPoller(t)
	ctx := context.Background()

	msg := &Message{
		MessageThreadID: 7,
		ReplyToMessage:  &Message{ForumTopicCreated: &ForumTopicCreated{Name: "General"}},
	}
	require.Equal(t, "General", p.resolveTopicName(ctx, msg, "-100123"))

	// Harvested once, resolvable later without the payload.
	name, ok := s.Topics.Get(ctx, -100123, 7)
	require.True(t, ok)
	require.Equal(t, "General", name)

	require.Equal(t, "General", p.resolveTopicName(ctx, &Message{MessageThreadID: 7}, "-100123"))
}

func TestResolveTopicNameUnknownWithoutCreationPayload(t *testing.T) {
	p, _ := newTopicPoller(t)
	require.Equal(t, "Unknown", p.resolveTopicName(context.Background(), &Message{MessageThreadID: 9}, "-100123"))
}
