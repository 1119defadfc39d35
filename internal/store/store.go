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

// Package store is the durable persistence layer: pairings, cross-network
// message identity, the sticker URL cache, and the forum-topic name cache.
// Every table follows the same shape: an idempotent Create, parameterised
// Add methods, and typed lookups. A failed query logs and returns a zero
// value rather than propagating - callers must treat "not found" and
// "lookup failed" identically, per the durable-store error contract.
package store

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store owns the single SQLite connection backing all four tables.
type Store struct {
	db  *sql.DB
	log zerolog.Logger

	Chats    *ChatStore
	Messages *MessageStore
	Stickers *StickerStore
	Topics   *TopicStore
}

// Open opens (creating if absent) the SQLite database at path and wraps it
// in a Store. It does not install the schema - call Create for that.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	db.SetMaxOpenConns(1) // sqlite3 serializes writes; avoid lock contention.

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	s.Chats = &ChatStore{db: db, log: s.log}
	s.Messages = &MessageStore{db: db, log: s.log}
	s.Stickers = &StickerStore{db: db, log: s.log}
	s.Topics = &TopicStore{db: db, log: s.log}
	return s, nil
}

// Create installs the schema for every table. It is idempotent and fails
// hard (returns the first error) since a broken schema can't be worked
// around at runtime - the runner is expected to treat this as fatal at
// startup.
func (s *Store) Create(ctx context.Context) error {
	for _, create := range []func(context.Context) error{
		s.Chats.create,
		s.Messages.create,
		s.Stickers.create,
		s.Topics.create,
	} {
		if err := create(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
