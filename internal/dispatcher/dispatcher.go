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

// Package dispatcher routes Forwardables from either network to the
// ChatHandler registered for their destination chat.
package dispatcher

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/model"
)

// queueCapacity bounds the dispatcher's FIFO queue. A producer that outruns
// the consumer suspends on enqueue - this is the bridge's only backpressure
// mechanism.
const queueCapacity = 100

// Dispatcher is the single consumer of every Forwardable produced by either
// network side. It owns the address-to-handler map and fans each
// Forwardable out to the correct handler method by variant.
type Dispatcher struct {
	log zerolog.Logger

	queue chan any

	mu      sync.Mutex
	handler map[string]model.ChatHandler

	onUnbridge func(ctx context.Context, chat model.Chat) (peerAddress string)
}

// New creates a Dispatcher. onUnbridge deletes the pairing from durable
// storage and returns the peer side's address so both directions can be
// removed from the handler map; it may be nil.
func New(log zerolog.Logger, onUnbridge func(ctx context.Context, chat model.Chat) (peerAddress string)) *Dispatcher {
	return &Dispatcher{
		log:        log.With().Str("component", "dispatcher").Logger(),
		queue:      make(chan any, queueCapacity),
		handler:    make(map[string]model.ChatHandler),
		onUnbridge: onUnbridge,
	}
}

// Register associates a ChatHandler with the destination address it serves.
// Both directions of a pairing register under their own address so an
// Unbridge addressed to either side can be looked up.
func (d *Dispatcher) Register(address string, h model.ChatHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler[address] = h
}

// Unregister removes the handler for address, if any.
func (d *Dispatcher) Unregister(address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handler, address)
}

func (d *Dispatcher) lookup(address string) (model.ChatHandler, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handler[address]
	return h, ok
}

// Bound reports whether address currently has a registered handler, i.e.
// whether it belongs to a confirmed pairing.
func (d *Dispatcher) Bound(address string) bool {
	_, ok := d.lookup(address)
	return ok
}

// Enqueue places a Forwardable on the queue, blocking if it is full. ctx
// cancellation aborts the enqueue.
func (d *Dispatcher) Enqueue(ctx context.Context, fw any) error {
	select {
	case d.queue <- fw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled. It is meant to be the
// dispatcher's single permanent task.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fw := <-d.queue:
			d.dispatch(ctx, fw)
		}
	}
}

// dispatch variant-matches fw and invokes the right handler method. Every
// variant except Unbridge is dispatched on its own goroutine so that one
// slow network call can't stall the queue; Unbridge is awaited inline
// because the cleanup that follows it must not race a concurrent event for
// the same chat.
func (d *Dispatcher) dispatch(ctx context.Context, fw any) {
	switch v := fw.(type) {
	case *model.UnbridgeEvent:
		d.handleUnbridge(ctx, v)
	case *model.Sticker:
		h, ok := d.lookup(v.Chat.Address)
		if !ok {
			d.log.Warn().Str("address", v.Chat.Address).Msg("no handler for sticker destination")
			return
		}
		go func() {
			if err := h.SendSticker(ctx, v); err != nil {
				d.log.Error().Err(err).Str("address", v.Chat.Address).Msg("send sticker")
			}
		}()
	case *model.Attachment:
		h, ok := d.lookup(v.Chat.Address)
		if !ok {
			d.log.Warn().Str("address", v.Chat.Address).Msg("no handler for attachment destination")
			return
		}
		go func() {
			if err := h.SendAttachment(ctx, v); err != nil {
				d.log.Error().Err(err).Str("address", v.Chat.Address).Msg("send attachment")
			}
		}()
	case *model.Message:
		h, ok := d.lookup(v.Chat.Address)
		if !ok {
			d.log.Warn().Str("address", v.Chat.Address).Msg("no handler for message destination")
			return
		}
		go func() {
			var err error
			if v.Edit {
				err = h.EditMessage(ctx, v)
			} else {
				err = h.SendMessage(ctx, v)
			}
			if err != nil {
				d.log.Error().Err(err).Str("address", v.Chat.Address).Msg("forward message")
			}
		}()
	case *model.Event:
		h, ok := d.lookup(v.Chat.Address)
		if !ok {
			d.log.Warn().Str("address", v.Chat.Address).Msg("no handler for event destination")
			return
		}
		go func() {
			if err := h.SendEvent(ctx, v); err != nil {
				d.log.Error().Err(err).Str("address", v.Chat.Address).Msg("send event")
			}
		}()
	default:
		d.log.Warn().Type("type", fw).Msg("dropping forwardable of unknown type")
	}
}

func (d *Dispatcher) handleUnbridge(ctx context.Context, v *model.UnbridgeEvent) {
	h, ok := d.lookup(v.Chat.Address)
	if ok {
		if err := h.Unbridge(ctx); err != nil {
			d.log.Error().Err(err).Str("address", v.Chat.Address).Msg("unbridge notice")
		}
	}

	d.Unregister(v.Chat.Address)

	if d.onUnbridge != nil {
		if peer := d.onUnbridge(ctx, v.Chat); peer != "" {
			d.Unregister(peer)
		}
	}
}
