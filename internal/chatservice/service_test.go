package chatservice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nettlebridge/tgxp/internal/model"
	"github.com/nettlebridge/tgxp/internal/store"
)

type countingFactory struct {
	created []string
}

func (f *countingFactory) CreateHandler(ctx context.Context, address, muc string) (model.ChatHandler, error) {
	f.created = append(f.created, address+"|"+muc)
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bridge.db"), zerolog.New(os.Stderr))
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return New(zerolog.New(os.Stderr), s.Chats, "s3cr3t"), s
}

func TestBindRequiresPendingAndMatchingKey(t *testing.T) {
	svc, s := newTestService(t)
	f := &countingFactory{}
	svc.RegisterFactory(f)
	ctx := context.Background()

	// No pending entry: mismatched key and correct key both no-op.
	svc.Bind(ctx, "room@conf.example.org", "s3cr3t")
	require.Empty(t, f.created)
	require.Empty(t, s.Chats.All(ctx))

	svc.Pending("room@conf.example.org", -100123)

	svc.Bind(ctx, "room@conf.example.org", "wrong")
	require.Empty(t, f.created)
	require.Empty(t, s.Chats.All(ctx))

	svc.Bind(ctx, "room@conf.example.org", "s3cr3t")
	require.Equal(t, []string{"-100123|room@conf.example.org"}, f.created)

	all := s.Chats.All(ctx)
	require.Len(t, all, 1)
	require.Equal(t, int64(-100123), all[0].TelegramID)
}

func TestPendingReissueOverwritesPreviousRoom(t *testing.T) {
	svc, _ := newTestService(t)
	f := &countingFactory{}
	svc.RegisterFactory(f)
	ctx := context.Background()

	svc.Pending("room-a@conf.example.org", -100123)
	svc.Pending("room-b@conf.example.org", -100123)

	// The first room is no longer pending.
	svc.Bind(ctx, "room-a@conf.example.org", "s3cr3t")
	require.Empty(t, f.created)

	svc.Bind(ctx, "room-b@conf.example.org", "s3cr3t")
	require.Equal(t, []string{"-100123|room-b@conf.example.org"}, f.created)
}

func TestLoadChatsRecreatesHandlersForEveryPairing(t *testing.T) {
	svc, s := newTestService(t)
	f := &countingFactory{}
	svc.RegisterFactory(f)
	ctx := context.Background()

	s.Chats.Add(ctx, -100123, "room@conf.example.org")
	svc.LoadChats(ctx)

	require.Equal(t, []string{"-100123|room@conf.example.org"}, f.created)
}

func TestUnbindRemovesByEitherAddress(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	s.Chats.Add(ctx, -100123, "room@conf.example.org")
	svc.Unbind(ctx, model.Chat{Address: "-100123"})
	require.Empty(t, s.Chats.All(ctx))

	s.Chats.Add(ctx, -100124, "room2@conf.example.org")
	svc.Unbind(ctx, model.Chat{Address: "room2@conf.example.org"})
	require.Empty(t, s.Chats.All(ctx))
}
