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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"github.com/rs/zerolog"
)

const (
	createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	telegram_id INTEGER UNIQUE NOT NULL,
	stanza_id TEXT UNIQUE NOT NULL,
	body TEXT NOT NULL,
	chat_id INTEGER NOT NULL,
	topic_id INTEGER,
	muc TEXT NOT NULL
)`

	// A message is identified by either its telegram_id or its stanza_id.
	// Re-adding either deletes the old row first so that an edit always
	// supersedes the message it replaces - "latest edit wins" for both
	// the id lookup and the body-digest reply lookup.
	deleteMessageByEitherID = `DELETE FROM messages WHERE telegram_id = ? OR stanza_id = ?`
	insertMessage           = `INSERT INTO messages (telegram_id, stanza_id, body, chat_id, topic_id, muc) VALUES (?, ?, ?, ?, ?, ?)`

	selectMessageByID = `
SELECT telegram_id, stanza_id FROM messages
WHERE chat_id = ? AND muc = ? AND (stanza_id = ? OR telegram_id = ?)`
	selectMessageByIDWithTopic = `
SELECT telegram_id, stanza_id FROM messages
WHERE chat_id = ? AND muc = ? AND topic_id = ? AND (stanza_id = ? OR telegram_id = ?)`

	selectMessageByBody = `
SELECT telegram_id, stanza_id FROM messages
WHERE chat_id = ? AND muc = ? AND body = ?`
	selectMessageByBodyWithTopic = `
SELECT telegram_id, stanza_id FROM messages
WHERE chat_id = ? AND muc = ? AND topic_id = ? AND body = ?`
)

// MessageIDPair is the cross-network identity of one bridged message: its
// TG message id and its XP stanza id.
type MessageIDPair struct {
	TelegramID int64
	StanzaID   string
}

// MessageStore owns the messages table, the crux of cross-network identity:
// it maps a TG message id to its XP stanza id and back, and lets a reply be
// resolved from the literal quoted text via a digest of the original body.
type MessageStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func (s *MessageStore) create(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createMessagesTable); err != nil {
		s.log.Error().Err(err).Msg("create messages table")
		return err
	}
	return nil
}

// DigestBody returns the hex-encoded SHA-256 digest of body, the value
// stored in the messages table's body column (never the plaintext).
func DigestBody(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Add records a newly forwarded (or edited) message. telegramID and
// stanzaID are the same message's identifiers on each side; body is the
// plaintext whose digest is stored for later reply lookups. Any existing
// row sharing either id is deleted first, so an edit's new row always wins
// future id and reply lookups over the row it supersedes.
func (s *MessageStore) Add(ctx context.Context, telegramID int64, stanzaID, body string, chatID int64, topicID *string, muc string) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("begin add message transaction")
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteMessageByEitherID, telegramID, stanzaID); err != nil {
		s.log.Error().Err(err).Msg("delete superseded message row")
		return
	}
	if _, err := tx.ExecContext(ctx, insertMessage, telegramID, stanzaID, DigestBody(body), chatID, topicID, muc); err != nil {
		s.log.Error().Err(err).Msg("insert message row")
		return
	}
	if err := tx.Commit(); err != nil {
		s.log.Error().Err(err).Msg("commit add message transaction")
	}
}

// GetByID resolves either a TG message id or an XP stanza id to the pair of
// both, scoped to one pairing (and topic, if given). Returns (zero, false)
// on any miss or failure - both are treated identically by the caller.
func (s *MessageStore) GetByID(ctx context.Context, chatID int64, topicID *string, muc string, messageID string) (MessageIDPair, bool) {
	var row *sql.Row
	if topicID != nil {
		row = s.db.QueryRowContext(ctx, selectMessageByIDWithTopic, chatID, muc, *topicID, messageID, messageID)
	} else {
		row = s.db.QueryRowContext(ctx, selectMessageByID, chatID, muc, messageID, messageID)
	}

	var pair MessageIDPair
	if err := row.Scan(&pair.TelegramID, &pair.StanzaID); err != nil {
		if err != sql.ErrNoRows {
			s.log.Error().Err(err).Msg("get message by id")
		}
		return MessageIDPair{}, false
	}
	return pair, true
}

// GetByBody resolves a quoted reply body to the message it quotes, by
// digesting body the same way Add does and looking up the matching row.
func (s *MessageStore) GetByBody(ctx context.Context, chatID int64, topicID *string, muc string, body string) (MessageIDPair, bool) {
	digest := DigestBody(body)

	var row *sql.Row
	if topicID != nil {
		row = s.db.QueryRowContext(ctx, selectMessageByBodyWithTopic, chatID, muc, *topicID, digest)
	} else {
		row = s.db.QueryRowContext(ctx, selectMessageByBody, chatID, muc, digest)
	}

	var pair MessageIDPair
	if err := row.Scan(&pair.TelegramID, &pair.StanzaID); err != nil {
		if err != sql.ErrNoRows {
			s.log.Error().Err(err).Msg("get message by body")
		}
		return MessageIDPair{}, false
	}
	return pair, true
}
