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
	createStickersTable = `
CREATE TABLE IF NOT EXISTS stickers (
	file_id TEXT PRIMARY KEY,
	xmpp_url TEXT NOT NULL
)`
	upsertSticker    = `INSERT INTO stickers (file_id, xmpp_url) VALUES (?, ?) ON CONFLICT(file_id) DO UPDATE SET xmpp_url = excluded.xmpp_url`
	selectStickerURL = `SELECT xmpp_url FROM stickers WHERE file_id = ?`
)

// StickerStore owns the stickers table: the reusable uploaded-URL cache
// keyed by the origin network's stable file identifier, so a given sticker
// is only ever uploaded to XP once.
type StickerStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func (s *StickerStore) create(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createStickersTable); err != nil {
		s.log.Error().Err(err).Msg("create stickers table")
		return err
	}
	return nil
}

// Add records (or updates) the XP upload URL for a sticker file id.
func (s *StickerStore) Add(ctx context.Context, fileID, xmppURL string) {
	if _, err := s.db.ExecContext(ctx, upsertSticker, fileID, xmppURL); err != nil {
		s.log.Error().Err(err).Msg("upsert sticker cache row")
	}
}

// Get returns the cached XP upload URL for fileID, if any.
func (s *StickerStore) Get(ctx context.Context, fileID string) (string, bool) {
	var url string
	if err := s.db.QueryRowContext(ctx, selectStickerURL, fileID).Scan(&url); err != nil {
		if err != sql.ErrNoRows {
			s.log.Error().Err(err).Msg("get sticker cache row")
		}
		return "", false
	}
	return url, true
}
