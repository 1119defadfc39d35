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
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
)

// extracted is the intermediate shape the attachment extractor produces
// before it's wrapped into an model.Attachment or model.Sticker - whichever
// the message actually carried.
type extracted struct {
	fileID   string
	filename string
	mime     string
	size     int64
	sticker  bool
}

// extractAttachment applies the priority order over a message's media
// fields: sticker (animated ones are skipped - XP clients can't render the
// vector format) -> photo (largest size) -> video/video_note/animation ->
// voice -> audio -> document. Returns ok=false if the message carries no
// attachment this bridge forwards.
func extractAttachment(msg *Message) (extracted, bool) {
	switch {
	case msg.Sticker != nil:
		if msg.Sticker.IsAnimated {
			return extracted{}, false
		}
		ext := ".webp"
		if msg.Sticker.IsVideo {
			ext = ".webm"
		}
		return extracted{fileID: msg.Sticker.FileID, filename: "sticker" + ext, mime: "image/webp", sticker: true}, true

	case len(msg.Photo) > 0:
		p := msg.Photo[len(msg.Photo)-1]
		return extracted{fileID: p.FileID, filename: "photo.jpg", mime: "image/jpeg", size: p.FileSize}, true

	case msg.Video != nil:
		return extracted{
			fileID:   msg.Video.FileID,
			filename: filenameOrFallback("", msg.Video.MimeType, "video.mp4"),
			mime:     mimeOrFallback(msg.Video.MimeType, "video/mp4"),
			size:     msg.Video.FileSize,
		}, true

	case msg.VideoNote != nil:
		return extracted{fileID: msg.VideoNote.FileID, filename: "video_note.mp4", mime: "video/mp4", size: msg.VideoNote.FileSize}, true

	case msg.Animation != nil:
		return extracted{
			fileID:   msg.Animation.FileID,
			filename: filenameOrFallback(msg.Animation.FileName, msg.Animation.MimeType, "animation.mp4"),
			mime:     mimeOrFallback(msg.Animation.MimeType, "video/mp4"),
			size:     msg.Animation.FileSize,
		}, true

	case msg.Voice != nil:
		return extracted{
			fileID:   msg.Voice.FileID,
			filename: filenameOrFallback("", msg.Voice.MimeType, "voice.ogg"),
			mime:     mimeOrFallback(msg.Voice.MimeType, "audio/ogg"),
			size:     msg.Voice.FileSize,
		}, true

	case msg.Audio != nil:
		return extracted{
			fileID:   msg.Audio.FileID,
			filename: filenameOrFallback(msg.Audio.FileName, msg.Audio.MimeType, "audio.mp3"),
			mime:     mimeOrFallback(msg.Audio.MimeType, "audio/mpeg"),
			size:     msg.Audio.FileSize,
		}, true

	case msg.Document != nil:
		return extracted{
			fileID:   msg.Document.FileID,
			filename: filenameOrFallback(msg.Document.FileName, msg.Document.MimeType, "file"),
			mime:     mimeOrFallback(msg.Document.MimeType, "application/octet-stream"),
			size:     msg.Document.FileSize,
		}, true
	}
	return extracted{}, false
}

var mimeExtension = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"application/pdf": ".pdf",
}

func mimeOrFallback(mime, fallback string) string {
	if mime != "" {
		return mime
	}
	return fallback
}

func filenameOrFallback(name, mime, fallback string) string {
	if name != "" {
		return name
	}
	if ext, ok := mimeExtension[mime]; ok {
		return "file" + ext
	}
	return fallback
}

// fileURL resolves a TG file_id to a downloadable URL via getFile, which
// the Bot API requires as a separate call from the file_id itself.
func fileURL(ctx context.Context, client *Client, token, fileID string) (string, error) {
	raw, err := client.Call(ctx, "getFile", map[string]string{"file_id": fileID}, nil)
	if err != nil {
		return "", errors.Wrap(err, "getFile")
	}
	var result struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", errors.Wrap(err, "decode getFile result")
	}
	return fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", token, result.FilePath), nil
}

// forwardOriginPrefix builds the provenance prefix applied to text that was
// forwarded from another sender, matching the "Message forwarded from X"
// convention the bridge preserves across networks.
func forwardOriginPrefix(msg *Message) string {
	if msg.ForwardOrigin == nil || msg.ForwardOrigin.SenderUserName == "" {
		return ""
	}
	return fmt.Sprintf("Message forwarded from %s\n\n", msg.ForwardOrigin.SenderUserName)
}

// replyText extracts the quoted text a TG reply points at: its text or
// caption, or, for media-only quotes, the synthesized attachment filename.
func replyText(msg *Message) string {
	if msg.ReplyToMessage == nil {
		return ""
	}
	r := msg.ReplyToMessage
	if r.Text != "" {
		return r.Text
	}
	if r.Caption != "" {
		return r.Caption
	}
	if att, ok := extractAttachment(r); ok {
		return att.filename
	}
	return ""
}
