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

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/dispatcher"
	"github.com/nettlebridge/tgxp/internal/model"
	"github.com/nettlebridge/tgxp/internal/store"
)

// Factory creates the TG-side outbound handler for a newly bound pairing
// and registers it with the dispatcher under its TG chat address.
type Factory struct {
	client     *Client
	token      string
	dispatcher *dispatcher.Dispatcher
	messages   *store.MessageStore
	topics     *store.TopicStore
	log        zerolog.Logger
}

// NewFactory creates a Factory.
func NewFactory(client *Client, token string, d *dispatcher.Dispatcher, messages *store.MessageStore, topics *store.TopicStore, log zerolog.Logger) *Factory {
	return &Factory{client: client, token: token, dispatcher: d, messages: messages, topics: topics, log: log}
}

// CreateHandler implements model.ChatHandlerFactory.
func (f *Factory) CreateHandler(ctx context.Context, address string, muc string) (model.ChatHandler, error) {
	tgChatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return nil, err
	}
	h := NewHandler(tgChatID, muc, f.client, f.token, f.messages, f.topics, f.log)
	f.dispatcher.Register(h.Address(), h)
	return h, nil
}
