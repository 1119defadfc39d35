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
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/model"
	"github.com/nettlebridge/tgxp/internal/store"
)

// Handler is the outbound, XP-side ChatHandler for one bound pairing: it
// turns Forwardables produced on TG into groupchat stanzas sent through the
// actor pool (or, for events and the unbridge notice, the listener
// session).
type Handler struct {
	muc      string
	tgChatID int64
	pool     *ActorPool
	listener *Listener
	uploader *Uploader
	messages *store.MessageStore
	stickers *store.StickerStore
	log      zerolog.Logger
}

// NewHandler constructs the outbound XP handler for the pairing between muc
// and tgChatID.
func NewHandler(muc string, tgChatID int64, pool *ActorPool, listener *Listener, uploader *Uploader, messages *store.MessageStore, stickers *store.StickerStore, log zerolog.Logger) *Handler {
	return &Handler{
		muc:      muc,
		tgChatID: tgChatID,
		pool:     pool,
		listener: listener,
		uploader: uploader,
		messages: messages,
		stickers: stickers,
		log:      log.With().Str("component", "xmpp_handler").Str("muc", muc).Logger(),
	}
}

// Address implements model.ChatHandler.
func (h *Handler) Address() string {
	return h.muc
}

// SendMessage implements model.ChatHandler.
func (h *Handler) SendMessage(ctx context.Context, msg *model.Message) error {
	actor := h.pool.GetActor(ctx, msg.Sender.ID, msg.Sender.Name, h.muc)

	body := msg.Content
	if msg.Reply != "" {
		body = quoteReply(msg.Reply) + "\n" + msg.Content
	}

	stanzaID := newStanzaID()
	if err := actor.SendGroupchat(h.muc, stanzaID, body, "", ""); err != nil {
		return fmt.Errorf("send message to xmpp: %w", err)
	}

	h.recordMessage(ctx, msg.ID, stanzaID, msg.Content, msg.Chat.TopicID)
	return nil
}

// EditMessage implements model.ChatHandler.
func (h *Handler) EditMessage(ctx context.Context, msg *model.Message) error {
	pair, ok := h.messages.GetByID(ctx, h.tgChatID, msg.Chat.TopicID, h.muc, msg.ID)
	if !ok {
		h.log.Info().Str("origin_id", msg.ID).Msg("dropping edit with no prior recorded message")
		return nil
	}

	actor := h.pool.GetActor(ctx, msg.Sender.ID, msg.Sender.Name, h.muc)

	body := msg.Content
	if msg.Reply != "" {
		body = quoteReply(msg.Reply) + "\n" + msg.Content
	}

	newID := newStanzaID()
	if err := actor.SendGroupchat(h.muc, newID, body, pair.StanzaID, ""); err != nil {
		return fmt.Errorf("edit xmpp message: %w", err)
	}

	h.recordMessage(ctx, msg.ID, newID, msg.Content, msg.Chat.TopicID)
	return nil
}

// SendEvent implements model.ChatHandler. Events are sent from the
// listener session, not an impersonation actor - they carry no sender
// identity to impersonate.
func (h *Handler) SendEvent(ctx context.Context, event *model.Event) error {
	if err := h.listener.Actor().SendGroupchat(h.muc, newStanzaID(), event.Content, "", ""); err != nil {
		return fmt.Errorf("send event to xmpp: %w", err)
	}
	return nil
}

// SendAttachment implements model.ChatHandler.
func (h *Handler) SendAttachment(ctx context.Context, att *model.Attachment) error {
	url, err := h.resolveURL(ctx, att, "")
	if err != nil {
		return fmt.Errorf("resolve attachment for xmpp: %w", err)
	}
	return h.sendAttachmentMessage(ctx, &att.Message, url)
}

// SendSticker implements model.ChatHandler. Stickers reuse a previously
// uploaded URL when the cache has one and it still resolves; otherwise they
// upload once and cache the result, same as any other attachment but keyed
// by the origin's stable file id instead of being uploaded unconditionally.
func (h *Handler) SendSticker(ctx context.Context, sticker *model.Sticker) error {
	url, err := h.resolveURL(ctx, &sticker.Attachment, sticker.FileID)
	if err != nil {
		return fmt.Errorf("resolve sticker for xmpp: %w", err)
	}
	return h.sendAttachmentMessage(ctx, &sticker.Message, url)
}

func (h *Handler) sendAttachmentMessage(ctx context.Context, msg *model.Message, url string) error {
	actor := h.pool.GetActor(ctx, msg.Sender.ID, msg.Sender.Name, h.muc)

	if msg.Reply != "" {
		if err := actor.SendGroupchat(h.muc, newStanzaID(), quoteReply(msg.Reply), "", ""); err != nil {
			h.log.Warn().Err(err).Msg("send reply-quote prefix for attachment")
		}
	}

	stanzaID := newStanzaID()
	if err := actor.SendGroupchat(h.muc, stanzaID, url, "", url); err != nil {
		return fmt.Errorf("send attachment to xmpp: %w", err)
	}

	// The stanza body XP participants see (and quote in replies) is the
	// URL, so that is what the reply-lookup digest has to cover.
	h.recordMessage(ctx, msg.ID, stanzaID, url, msg.Chat.TopicID)
	return nil
}

// resolveURL returns the XP-reachable URL for an attachment's bytes. For a
// sticker (fileID non-empty) it first consults the durable sticker cache
// and, if found, HEAD-probes the URL - a 404 is treated as a miss so a
// purged upload gets re-uploaded. Any other attachment always downloads and
// uploads fresh.
func (h *Handler) resolveURL(ctx context.Context, att *model.Attachment, fileID string) (string, error) {
	if fileID != "" {
		if cached, ok := h.stickers.Get(ctx, fileID); ok && h.uploader.Probe(ctx, cached) {
			return cached, nil
		}
	}

	srcURL, err := att.URLCallback(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve download url: %w", err)
	}

	body, err := downloadAttachment(ctx, srcURL)
	if err != nil {
		return "", err
	}

	filename := att.Filename
	if filename == "" {
		filename = attachmentFilename(srcURL, att.MIME)
	}
	uploaded, err := h.uploader.Upload(ctx, filename, bytes.NewReader(body), int64(len(body)), att.MIME)
	if err != nil {
		return "", fmt.Errorf("upload attachment: %w", err)
	}

	if fileID != "" {
		h.stickers.Add(ctx, fileID, uploaded)
	}
	return uploaded, nil
}

// Unbridge implements model.ChatHandler: the listener posts the canned
// notice and leaves, and every impersonation actor currently in the room
// leaves too.
func (h *Handler) Unbridge(ctx context.Context) error {
	if err := h.listener.Actor().SendGroupchat(h.muc, newStanzaID(), "This chat has been unbridged.", "", ""); err != nil {
		h.log.Error().Err(err).Msg("send unbridge notice")
	}
	h.pool.Leave(h.muc)
	return h.listener.Leave(h.muc)
}

func (h *Handler) recordMessage(ctx context.Context, telegramOriginID, stanzaID, body string, topicID *string) {
	telegramID, err := strconv.ParseInt(telegramOriginID, 10, 64)
	if err != nil {
		h.log.Error().Err(err).Str("origin_id", telegramOriginID).Msg("non-numeric telegram id on outbound xmpp message")
		return
	}
	h.messages.Add(ctx, telegramID, stanzaID, body, h.tgChatID, topicID, h.muc)
}

// newStanzaID mints the bridge's own unique identifier for an outbound
// stanza, since mattn/go-xmpp's Send doesn't hand back a server-assigned
// id. It is the value later persisted as MessageStore's stanza_id and
// referenced by a subsequent replacement extension.
func newStanzaID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// attachmentFilename derives the name an uploaded attachment is stored
// under: the source URL's last path segment if it has a plausible
// extension, otherwise a generic name built from the MIME type.
func attachmentFilename(srcURL, mime string) string {
	if base := path.Base(srcURL); base != "." && base != "/" && strings.Contains(base, ".") {
		return base
	}
	ext := "bin"
	if slash := strings.IndexByte(mime, '/'); slash >= 0 && slash+1 < len(mime) {
		ext = mime[slash+1:]
	}
	return newStanzaID() + "." + ext
}

func downloadAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read attachment body: %w", err)
	}
	return body, nil
}
