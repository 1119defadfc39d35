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
	createTopicsTable = `
CREATE TABLE IF NOT EXISTS topics (
	chat_id INTEGER NOT NULL,
	topic_id INTEGER NOT NULL,
	topic_name TEXT NOT NULL,
	UNIQUE(chat_id, topic_id)
)`
	upsertTopic     = `INSERT INTO topics (chat_id, topic_id, topic_name) VALUES (?, ?, ?) ON CONFLICT(chat_id, topic_id) DO UPDATE SET topic_name = excluded.topic_name`
	selectTopicName = `SELECT topic_name FROM topics WHERE chat_id = ? AND topic_id = ?`
)

// TopicStore owns the topics table: the human-readable name of each forum
// topic thread, harvested once from TG's topic-creation metadata.
type TopicStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func (s *TopicStore) create(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTopicsTable); err != nil {
		s.log.Error().Err(err).Msg("create topics table")
		return err
	}
	return nil
}

// Add records (or updates) the display name of a forum topic.
func (s *TopicStore) Add(ctx context.Context, chatID int64, topicID int64, name string) {
	if _, err := s.db.ExecContext(ctx, upsertTopic, chatID, topicID, name); err != nil {
		s.log.Error().Err(err).Msg("upsert topic name row")
	}
}

// Get returns the cached display name of a forum topic, if known.
func (s *TopicStore) Get(ctx context.Context, chatID int64, topicID int64) (string, bool) {
	var name string
	if err := s.db.QueryRowContext(ctx, selectTopicName, chatID, topicID).Scan(&name); err != nil {
		if err != sql.ErrNoRows {
			s.log.Error().Err(err).Msg("get topic name row")
		}
		return "", false
	}
	return name, true
}
