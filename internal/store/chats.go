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

package store

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
)

const (
	createChatsTable = `
CREATE TABLE IF NOT EXISTS chats (
	telegram_id INTEGER UNIQUE NOT NULL,
	muc TEXT UNIQUE NOT NULL
)`
	insertChat      = `INSERT INTO chats (telegram_id, muc) VALUES (?, ?)`
	deleteChatByAny = `DELETE FROM chats WHERE telegram_id = ? OR muc = ?`
	selectAllChats  = `SELECT telegram_id, muc FROM chats`
)

// Pairing is one bound (TG chat, XP room) pair.
type Pairing struct {
	TelegramID int64
	MUC        string
}

// ChatStore owns the chats table: the set of confirmed pairings.
type ChatStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func (s *ChatStore) create(ctx context.Context) error {
	return s.execOrLog(ctx, createChatsTable, "create chats table")
}

func (s *ChatStore) execOrLog(ctx context.Context, statement string, errMsg string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, statement, args...); err != nil {
		s.log.Error().Err(err).Msg(errMsg)
		return err
	}
	return nil
}

// Add records a new pairing. Failure is logged and swallowed, matching the
// "in-memory path continues" persistence-error policy; the caller decides
// whether the handler map update still happens.
func (s *ChatStore) Add(ctx context.Context, telegramID int64, muc string) {
	_ = s.execOrLog(ctx, insertChat, "add chat pairing", telegramID, muc)
}

// Remove deletes any pairing whose telegram id or muc address matches
// either side passed in - used by Unbridge, which only knows one side.
func (s *ChatStore) Remove(ctx context.Context, telegramID int64, muc string) {
	_ = s.execOrLog(ctx, deleteChatByAny, "remove chat pairing", telegramID, muc)
}

// All returns every persisted pairing, used by the chat service to recreate
// handlers for all chats at startup.
func (s *ChatStore) All(ctx context.Context) []Pairing {
	rows, err := s.db.QueryContext(ctx, selectAllChats)
	if err != nil {
		s.log.Error().Err(err).Msg("list chat pairings")
		return nil
	}
	defer rows.Close()

	var out []Pairing
	for rows.Next() {
		var p Pairing
		if err := rows.Scan(&p.TelegramID, &p.MUC); err != nil {
			s.log.Error().Err(err).Msg("scan chat pairing")
			continue
		}
		out = append(out, p)
	}
	return out
}
