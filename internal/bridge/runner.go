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

// Package bridge wires the persistence layer, dispatcher, chat service, and
// both network sides together and runs the bridge's permanent tasks.
package bridge

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/chatservice"
	"github.com/nettlebridge/tgxp/internal/config"
	"github.com/nettlebridge/tgxp/internal/dispatcher"
	"github.com/nettlebridge/tgxp/internal/store"
	"github.com/nettlebridge/tgxp/internal/telegram"
	"github.com/nettlebridge/tgxp/internal/xmpp"
)

// Runner owns every long-lived component the bridge needs and drives its
// three permanent tasks: the TG poller, the XP listener session, and the
// dispatcher's queue consumer.
type Runner struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *store.Store

	dispatcher  *dispatcher.Dispatcher
	chatService *chatservice.Service
	poller      *telegram.Poller
	listener    *xmpp.Listener
}

// New constructs every component, installs the database schema, and
// registers both sides' handler factories. It fails hard (returns an error)
// if the schema can't be installed - a broken store can't be worked around
// at runtime.
func New(ctx context.Context, cfg *config.Config, dbPath string, log zerolog.Logger) (*Runner, error) {
	st, err := store.Open(dbPath, log)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	if err := st.Create(ctx); err != nil {
		return nil, errors.Wrap(err, "install schema")
	}

	svc := chatservice.New(log, st.Chats, cfg.General.Key)
	disp := dispatcher.New(log, svc.Unbind)

	tgClient := telegram.NewClient(cfg.Telegram.Token, log)
	tgFactory := telegram.NewFactory(tgClient, cfg.Telegram.Token, disp, st.Messages, st.Topics, log)
	svc.RegisterFactory(tgFactory)

	actorListener := xmpp.NewListener(cfg.XMPP.Host, cfg.XMPP.Login, cfg.XMPP.Password, cfg.XMPP.Login, disp, svc, log)
	actorPool := xmpp.NewActorPool(cfg.XMPP.Host, cfg.XMPP.Login, cfg.XMPP.Password, cfg.XMPP.ActorsPoolSizeLimit, actorListener.Actor(), log)
	uploader := xmpp.NewUploader(cfg.XMPP.UploadBaseURL)
	xpFactory := xmpp.NewFactory(actorPool, actorListener, uploader, disp, st.Messages, st.Stickers, log)
	svc.RegisterFactory(xpFactory)

	poller := telegram.NewPoller(tgClient, cfg.Telegram.Token, disp, svc, st.Topics, cfg.XMPP.Login, log)

	r := &Runner{
		cfg:         cfg,
		log:         log.With().Str("component", "runner").Logger(),
		store:       st,
		dispatcher:  disp,
		chatService: svc,
		poller:      poller,
		listener:    actorListener,
	}
	return r, nil
}

// Run loads every persisted pairing, launches the three permanent tasks,
// and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.chatService.LoadChats(ctx)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		r.dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		r.poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := r.listener.Run(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("xmpp listener exited")
		}
	}()

	wg.Wait()
	return r.store.Close()
}
