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
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/dispatcher"
	"github.com/nettlebridge/tgxp/internal/model"
	"github.com/nettlebridge/tgxp/internal/store"
)

// Factory creates the XP-side outbound handler for a newly bound pairing,
// makes the listener join the room, and registers the handler with the
// dispatcher under its MUC address.
type Factory struct {
	pool       *ActorPool
	listener   *Listener
	uploader   *Uploader
	dispatcher *dispatcher.Dispatcher
	messages   *store.MessageStore
	stickers   *store.StickerStore
	log        zerolog.Logger
}

// NewFactory creates a Factory.
func NewFactory(pool *ActorPool, listener *Listener, uploader *Uploader, d *dispatcher.Dispatcher, messages *store.MessageStore, stickers *store.StickerStore, log zerolog.Logger) *Factory {
	return &Factory{
		pool:       pool,
		listener:   listener,
		uploader:   uploader,
		dispatcher: d,
		messages:   messages,
		stickers:   stickers,
		log:        log,
	}
}

// CreateHandler implements model.ChatHandlerFactory.
func (f *Factory) CreateHandler(ctx context.Context, address string, muc string) (model.ChatHandler, error) {
	tgChatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return nil, err
	}

	if err := f.listener.Join(ctx, muc); err != nil {
		f.log.Error().Err(err).Str("muc", muc).Msg("listener failed to join bound room")
	}

	h := NewHandler(muc, tgChatID, f.pool, f.listener, f.uploader, f.messages, f.stickers, f.log)
	f.dispatcher.Register(h.Address(), h)
	return h, nil
}
