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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nettlebridge/tgxp/internal/lrucache"
	"github.com/nettlebridge/tgxp/internal/model"
	"github.com/nettlebridge/tgxp/internal/store"
)

// topicResidenceWindow is how long a non-reply message from a sender still
// lands in the topic that sender's last resolved reply pointed at.
const topicResidenceWindow = 10 * time.Second

type topicTimeoutEntry struct {
	topicID string
	at      time.Time
}

type entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Handler is the outbound, TG-side ChatHandler for one bound pairing: it
// turns Forwardables produced on XP into Bot API calls against this TG
// chat.
type Handler struct {
	tgChatID int64
	muc      string
	client   *Client
	token    string
	messages *store.MessageStore
	topics   *store.TopicStore
	log      zerolog.Logger

	replyCache *lrucache.Cache[string, store.MessageIDPair]
	topicIDs   *lrucache.Cache[string, string] // telegram message id -> topic id

	mu        sync.Mutex
	residence map[string]*topicTimeoutEntry
}

// NewHandler constructs the outbound TG handler for the pairing between
// tgChatID and muc.
func NewHandler(tgChatID int64, muc string, client *Client, token string, messages *store.MessageStore, topics *store.TopicStore, log zerolog.Logger) *Handler {
	return &Handler{
		tgChatID:   tgChatID,
		muc:        muc,
		client:     client,
		token:      token,
		messages:   messages,
		topics:     topics,
		replyCache: lrucache.New[string, store.MessageIDPair](256),
		topicIDs:   lrucache.New[string, string](256),
		residence:  make(map[string]*topicTimeoutEntry),
		log:        log.With().Str("component", "telegram_handler").Int64("telegram_chat_id", tgChatID).Logger(),
	}
}

// Address returns the TG chat address this handler serves.
func (h *Handler) Address() string {
	return strconv.FormatInt(h.tgChatID, 10)
}

// resolveReply looks the reply text up in the fast in-memory cache first,
// falling back to the durable store - the dual fast-path/durable lookup the
// original preserved across process restarts.
func (h *Handler) resolveReply(ctx context.Context, body string) (store.MessageIDPair, bool) {
	if pair, ok := h.replyCache.Get(body); ok {
		return pair, true
	}
	pair, ok := h.messages.GetByBody(ctx, h.tgChatID, nil, h.muc, body)
	if ok {
		h.replyCache.Put(body, pair)
	}
	return pair, ok
}

func (h *Handler) rememberResidence(senderID, topicID string) {
	if topicID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.residence[senderID] = &topicTimeoutEntry{topicID: topicID, at: time.Now()}
}

func (h *Handler) residentTopic(senderID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.residence[senderID]
	if !ok || time.Since(entry.at) > topicResidenceWindow {
		return ""
	}
	return entry.topicID
}

// topicForMessage looks up the forum topic a previously-sent TG message id
// landed in, the back-reference cache that lets a reply resolved by body
// also recover which topic its target lives in.
func (h *Handler) topicForMessage(telegramID int64) string {
	topicID, _ := h.topicIDs.Get(strconv.FormatInt(telegramID, 10))
	return topicID
}

func (h *Handler) rememberTopicForMessage(telegramID int64, topicID string) {
	if topicID == "" {
		return
	}
	h.topicIDs.Put(strconv.FormatInt(telegramID, 10), topicID)
}

func boldEntity(length int) []entity {
	return []entity{{Type: "bold", Offset: 0, Length: length}}
}

// buildOutgoingText builds the TG-side rendering of an XP message: either a
// native reply (when nativeReply is set) or a synthesized blockquote, and
// always a bold sender prefix.
func buildOutgoingText(sender, content, replyBody string, nativeReply bool) (string, []entity) {
	senderPrefix := sender + ": "
	if nativeReply || replyBody == "" {
		return senderPrefix + content, boldEntity(len(senderPrefix) - 2)
	}

	line1 := replyBody
	line2 := senderPrefix + content
	text := line1 + "\n" + line2
	entities := []entity{
		{Type: "blockquote", Offset: 0, Length: len(line1)},
		{Type: "bold", Offset: len(line1) + 1, Length: len(senderPrefix) - 2},
	}
	return text, entities
}

// SendMessage implements model.ChatHandler.
func (h *Handler) SendMessage(ctx context.Context, msg *model.Message) error {
	var replyToID int64
	var topicID string
	nativeReply := false

	if msg.Reply != "" {
		if pair, ok := h.resolveReply(ctx, msg.Reply); ok {
			replyToID = pair.TelegramID
			topicID = h.topicForMessage(pair.TelegramID)
			nativeReply = true
			h.rememberResidence(msg.Sender.ID, topicID)
		}
	} else if resident := h.residentTopic(msg.Sender.ID); resident != "" {
		topicID = resident
	}

	text, entities := buildOutgoingText(msg.Sender.Name, msg.Content, msg.Reply, nativeReply)
	params := map[string]string{
		"chat_id": strconv.FormatInt(h.tgChatID, 10),
		"text":    text,
	}
	if entitiesJSON, err := json.Marshal(entities); err == nil {
		params["entities"] = string(entitiesJSON)
	}
	if nativeReply {
		params["reply_to_message_id"] = strconv.FormatInt(replyToID, 10)
	}
	if topicID != "" {
		params["message_thread_id"] = topicID
	}

	raw, err := h.client.Call(ctx, "sendMessage", params, nil)
	if err != nil {
		return fmt.Errorf("send message to telegram: %w", err)
	}

	sentID, err := parseMessageID(raw)
	if err != nil {
		return err
	}
	h.rememberTopicForMessage(sentID, topicID)
	h.recordMessage(ctx, sentID, msg.ID, msg.Content, topicID)
	return nil
}

// EditMessage implements model.ChatHandler.
func (h *Handler) EditMessage(ctx context.Context, msg *model.Message) error {
	pair, ok := h.messages.GetByID(ctx, h.tgChatID, nil, h.muc, msg.ID)
	if !ok {
		h.log.Info().Str("origin_id", msg.ID).Msg("dropping edit with no prior recorded message")
		return nil
	}

	nativeReply := false
	if msg.Reply != "" {
		_, nativeReply = h.resolveReply(ctx, msg.Reply)
	}
	text, entities := buildOutgoingText(msg.Sender.Name, msg.Content, msg.Reply, nativeReply)
	params := map[string]string{
		"chat_id":    strconv.FormatInt(h.tgChatID, 10),
		"message_id": strconv.FormatInt(pair.TelegramID, 10),
		"text":       text,
	}
	if entitiesJSON, err := json.Marshal(entities); err == nil {
		params["entities"] = string(entitiesJSON)
	}

	if _, err := h.client.Call(ctx, "editMessageText", params, nil); err != nil {
		return fmt.Errorf("edit telegram message: %w", err)
	}
	h.recordMessage(ctx, pair.TelegramID, msg.ID, msg.Content, h.topicForMessage(pair.TelegramID))
	return nil
}

// SendEvent implements model.ChatHandler.
func (h *Handler) SendEvent(ctx context.Context, event *model.Event) error {
	_, err := h.client.Call(ctx, "sendMessage", map[string]string{
		"chat_id": strconv.FormatInt(h.tgChatID, 10),
		"text":    event.Content,
	}, nil)
	if err != nil {
		return fmt.Errorf("send event to telegram: %w", err)
	}
	return nil
}

// SendAttachment implements model.ChatHandler.
func (h *Handler) SendAttachment(ctx context.Context, att *model.Attachment) error {
	url, err := att.URLCallback(ctx)
	if err != nil {
		return h.sendFallback(ctx, att, "could not resolve attachment download URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return h.sendFallback(ctx, att, "could not build attachment download request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return h.sendFallback(ctx, att, "could not download attachment")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return h.sendFallback(ctx, att, "could not read attachment body")
	}

	method, field := methodForMIME(att.MIME)
	senderPrefix := att.Sender.Name + ": "
	params := map[string]string{
		"chat_id": strconv.FormatInt(h.tgChatID, 10),
		"caption": senderPrefix,
	}
	if entitiesJSON, err := json.Marshal(boldEntity(len(senderPrefix) - 2)); err == nil {
		params["caption_entities"] = string(entitiesJSON)
	}

	filename := att.Filename
	if filename == "" {
		filename = "attachment"
	}
	raw, err := h.client.Call(ctx, method, params, &file{
		Field:    field,
		Filename: filename,
		Body:     bytes.NewReader(body),
	})
	if err != nil {
		return h.sendFallback(ctx, att, "could not upload attachment")
	}

	sentID, err := parseMessageID(raw)
	if err != nil {
		return err
	}
	h.recordMessage(ctx, sentID, att.ID, att.Content, "")
	return nil
}

// SendSticker implements model.ChatHandler. Stickers only ever originate on
// TG (XP has no equivalent stable-identity attachment kind), so this
// direction never actually sees one in practice; it's handled the same as
// any other attachment.
func (h *Handler) SendSticker(ctx context.Context, sticker *model.Sticker) error {
	return h.SendAttachment(ctx, &sticker.Attachment)
}

func (h *Handler) sendFallback(ctx context.Context, att *model.Attachment, reason string) error {
	_, err := h.client.Call(ctx, "sendMessage", map[string]string{
		"chat_id": strconv.FormatInt(h.tgChatID, 10),
		"text":    fmt.Sprintf("%s: [%s]", att.Sender.Name, reason),
	}, nil)
	return err
}

// Unbridge implements model.ChatHandler.
func (h *Handler) Unbridge(ctx context.Context) error {
	_, err := h.client.Call(ctx, "sendMessage", map[string]string{
		"chat_id": strconv.FormatInt(h.tgChatID, 10),
		"text":    "This chat has been unbridged.",
	}, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("send unbridge notice")
	}
	_, err = h.client.Call(ctx, "leaveChat", map[string]string{
		"chat_id": strconv.FormatInt(h.tgChatID, 10),
	}, nil)
	return err
}

func (h *Handler) recordMessage(ctx context.Context, telegramID int64, originID, body, topicID string) {
	var topicPtr *string
	if topicID != "" {
		topicPtr = &topicID
	}
	h.messages.Add(ctx, telegramID, originID, body, h.tgChatID, topicPtr, h.muc)
	h.replyCache.Put(body, store.MessageIDPair{TelegramID: telegramID, StanzaID: originID})
}

func methodForMIME(mime string) (method, field string) {
	switch {
	case mime == "image/gif":
		return "sendAnimation", "animation"
	case strings.HasPrefix(mime, "image/"):
		return "sendPhoto", "photo"
	case strings.HasPrefix(mime, "video/"):
		return "sendVideo", "video"
	case strings.HasPrefix(mime, "audio/"):
		return "sendAudio", "audio"
	default:
		return "sendDocument", "document"
	}
}

func parseMessageID(raw json.RawMessage) (int64, error) {
	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decode sent message result: %w", err)
	}
	return result.MessageID, nil
}
