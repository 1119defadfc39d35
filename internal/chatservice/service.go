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

// Package chatservice maintains pending pairings and confirms the
// invitation handshake that turns a pending pairing into a bound one.
package chatservice

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/model"
	"github.com/nettlebridge/tgxp/internal/store"
)

// Service owns the pairing handshake: pending rooms waiting for a matching
// XP invitation, the set of registered ChatHandlerFactories, and the
// durable chats table.
type Service struct {
	log    zerolog.Logger
	chats  *store.ChatStore
	secret string

	mu       sync.Mutex
	pending  map[string]int64 // xp room -> tg chat id, for the invitation side
	byTGChat map[int64]string // tg chat id -> xp room, to enforce one pending per chat
	factory  []model.ChatHandlerFactory

	boundMu    sync.RWMutex
	mucForChat map[int64]string // confirmed pairings, tg chat id -> xp room
	chatForMUC map[string]int64 // confirmed pairings, xp room -> tg chat id
}

// New creates a Service. secret is the handshake key configured for this
// bridge instance.
func New(log zerolog.Logger, chats *store.ChatStore, secret string) *Service {
	return &Service{
		log:        log.With().Str("component", "chat_service").Logger(),
		chats:      chats,
		secret:     secret,
		pending:    make(map[string]int64),
		byTGChat:   make(map[int64]string),
		mucForChat: make(map[int64]string),
		chatForMUC: make(map[string]int64),
	}
}

// MUCForChat returns the XP room paired with tgChatID, if the pairing is
// confirmed. The TG side uses this to address a forwardable at its XP
// destination.
func (s *Service) MUCForChat(tgChatID int64) (string, bool) {
	s.boundMu.RLock()
	defer s.boundMu.RUnlock()
	muc, ok := s.mucForChat[tgChatID]
	return muc, ok
}

// ChatForMUC returns the TG chat paired with muc, if the pairing is
// confirmed. The XP side uses this to address a forwardable at its TG
// destination.
func (s *Service) ChatForMUC(muc string) (int64, bool) {
	s.boundMu.RLock()
	defer s.boundMu.RUnlock()
	chatID, ok := s.chatForMUC[muc]
	return chatID, ok
}

func (s *Service) rememberBound(tgChatID int64, xpRoom string) {
	s.boundMu.Lock()
	defer s.boundMu.Unlock()
	s.mucForChat[tgChatID] = xpRoom
	s.chatForMUC[xpRoom] = tgChatID
}

// forgetBound removes a pairing's address bookkeeping once it is unbound.
func (s *Service) forgetBound(tgChatID int64, xpRoom string) {
	s.boundMu.Lock()
	defer s.boundMu.Unlock()
	delete(s.mucForChat, tgChatID)
	delete(s.chatForMUC, xpRoom)
}

// BoundRooms returns every XP room with a confirmed pairing, for the
// listener to join at startup.
func (s *Service) BoundRooms() []string {
	s.boundMu.RLock()
	defer s.boundMu.RUnlock()
	rooms := make([]string, 0, len(s.chatForMUC))
	for room := range s.chatForMUC {
		rooms = append(rooms, room)
	}
	return rooms
}

// RegisterFactory adds a ChatHandlerFactory to be invoked whenever a
// pairing is bound, either via handshake or at startup via LoadChats.
func (s *Service) RegisterFactory(f model.ChatHandlerFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factory = append(s.factory, f)
}

// Pending records that tgChatID is waiting to be claimed by an XP
// invitation to xpRoom. Issuing this twice for the same TG chat drops the
// previous pending entry - pending is unique per TG chat.
func (s *Service) Pending(xpRoom string, tgChatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldRoom, ok := s.byTGChat[tgChatID]; ok {
		delete(s.pending, oldRoom)
	}
	s.pending[xpRoom] = tgChatID
	s.byTGChat[tgChatID] = xpRoom
}

// Bind attempts to complete the handshake for xpRoom using the key supplied
// on the XP invitation. It is a silent no-op, logged only, unless a pending
// entry exists for xpRoom and suppliedKey matches the configured secret. On
// success it persists the pairing and invokes every registered factory.
func (s *Service) Bind(ctx context.Context, xpRoom, suppliedKey string) {
	if suppliedKey != s.secret {
		s.log.Info().Str("muc", xpRoom).Msg("rejected invitation with mismatched key")
		return
	}

	s.mu.Lock()
	tgChatID, ok := s.pending[xpRoom]
	if ok {
		delete(s.pending, xpRoom)
		delete(s.byTGChat, tgChatID)
	}
	s.mu.Unlock()

	if !ok {
		s.log.Info().Str("muc", xpRoom).Msg("rejected invitation with no pending pairing")
		return
	}

	s.chats.Add(ctx, tgChatID, xpRoom)
	s.spawnHandlers(ctx, tgChatID, xpRoom)
}

// LoadChats re-creates handlers for every pairing already persisted, used
// once at startup.
func (s *Service) LoadChats(ctx context.Context) {
	for _, pairing := range s.chats.All(ctx) {
		s.spawnHandlers(ctx, pairing.TelegramID, pairing.MUC)
	}
}

func (s *Service) spawnHandlers(ctx context.Context, tgChatID int64, xpRoom string) {
	s.rememberBound(tgChatID, xpRoom)

	s.mu.Lock()
	factories := make([]model.ChatHandlerFactory, len(s.factory))
	copy(factories, s.factory)
	s.mu.Unlock()

	tgAddress := strconv.FormatInt(tgChatID, 10)
	for _, f := range factories {
		if _, err := f.CreateHandler(ctx, tgAddress, xpRoom); err != nil {
			s.log.Error().Err(err).Str("muc", xpRoom).Int64("telegram_id", tgChatID).Msg("create chat handler")
		}
	}
}

// Unbind removes a confirmed pairing from storage and returns the peer
// side's address (if the pairing was known) so the dispatcher can remove
// both directions' handlers from its map.
func (s *Service) Unbind(ctx context.Context, chat model.Chat) string {
	if tgChatID, err := strconv.ParseInt(chat.Address, 10, 64); err == nil {
		peer := ""
		if xpRoom, ok := s.MUCForChat(tgChatID); ok {
			s.forgetBound(tgChatID, xpRoom)
			peer = xpRoom
		}
		s.chats.Remove(ctx, tgChatID, peer)
		return peer
	}
	peer := ""
	if tgChatID, ok := s.ChatForMUC(chat.Address); ok {
		s.forgetBound(tgChatID, chat.Address)
		peer = strconv.FormatInt(tgChatID, 10)
	}
	s.chats.Remove(ctx, 0, chat.Address)
	return peer
}
