package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "bridge.db"), zerolog.New(os.Stderr))
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestChatStoreAddRemoveAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Chats.Add(ctx, -100123, "room@conf.example.org")
	all := s.Chats.All(ctx)
	require.Len(t, all, 1)
	require.Equal(t, int64(-100123), all[0].TelegramID)
	require.Equal(t, "room@conf.example.org", all[0].MUC)

	s.Chats.Remove(ctx, -100123, "")
	require.Empty(t, s.Chats.All(ctx))
}

func TestMessageStoreGetByIDEitherDirection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Messages.Add(ctx, 42, "stanza-1", "hi", -100123, nil, "room@conf.example.org")

	byTG, ok := s.Messages.GetByID(ctx, -100123, nil, "room@conf.example.org", "42")
	require.True(t, ok)
	require.Equal(t, "stanza-1", byTG.StanzaID)

	byStanza, ok := s.Messages.GetByID(ctx, -100123, nil, "room@conf.example.org", "stanza-1")
	require.True(t, ok)
	require.Equal(t, int64(42), byStanza.TelegramID)
}

func TestMessageStoreGetByBody(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Messages.Add(ctx, 42, "stanza-1", "hi", -100123, nil, "room@conf.example.org")

	pair, ok := s.Messages.GetByBody(ctx, -100123, nil, "room@conf.example.org", "hi")
	require.True(t, ok)
	require.Equal(t, int64(42), pair.TelegramID)

	_, ok = s.Messages.GetByBody(ctx, -100123, nil, "room@conf.example.org", "missing")
	require.False(t, ok)
}

func TestMessageStoreEditSupersedesPriorRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Messages.Add(ctx, 42, "stanza-1", "hi", -100123, nil, "room@conf.example.org")
	s.Messages.Add(ctx, 42, "stanza-1", "hi2", -100123, nil, "room@conf.example.org")

	// The latest edit wins: replying to the stale pre-edit text no longer
	// resolves to this message at all.
	_, ok := s.Messages.GetByBody(ctx, -100123, nil, "room@conf.example.org", "hi")
	require.False(t, ok)

	pair, ok := s.Messages.GetByBody(ctx, -100123, nil, "room@conf.example.org", "hi2")
	require.True(t, ok)
	require.Equal(t, "stanza-1", pair.StanzaID)
}

func TestMessageStoreScopedByTopic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	topicA := "1"
	topicB := "2"
	s.Messages.Add(ctx, 1, "s1", "same text", -100123, &topicA, "room@conf.example.org")
	s.Messages.Add(ctx, 2, "s2", "same text", -100123, &topicB, "room@conf.example.org")

	pair, ok := s.Messages.GetByBody(ctx, -100123, &topicA, "room@conf.example.org", "same text")
	require.True(t, ok)
	require.Equal(t, int64(1), pair.TelegramID)
}

func TestStickerStoreUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok := s.Stickers.Get(ctx, "abc")
	require.False(t, ok)

	s.Stickers.Add(ctx, "abc", "https://upload.example.org/abc.webp")
	url, ok := s.Stickers.Get(ctx, "abc")
	require.True(t, ok)
	require.Equal(t, "https://upload.example.org/abc.webp", url)

	s.Stickers.Add(ctx, "abc", "https://upload.example.org/abc-v2.webp")
	url, ok = s.Stickers.Get(ctx, "abc")
	require.True(t, ok)
	require.Equal(t, "https://upload.example.org/abc-v2.webp", url)
}

func TestTopicStoreUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok := s.Topics.Get(ctx, -100123, 7)
	require.False(t, ok)

	s.Topics.Add(ctx, -100123, 7, "General")
	name, ok := s.Topics.Get(ctx, -100123, 7)
	require.True(t, ok)
	require.Equal(t, "General", name)
}
