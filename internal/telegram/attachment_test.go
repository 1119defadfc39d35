package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractAttachmentSkipsAnimatedStickers(t *testing.T) {
	_, ok := extractAttachment(&Message{Sticker: &Sticker{FileID: "abc", IsAnimated: true}})
	require.False(t, ok)
}

func TestExtractAttachmentPriorityOrder(t *testing.T) {
	// A message carrying both a sticker and a photo should extract the
	// sticker - it's first in priority order.
	msg := &Message{
		Sticker: &Sticker{FileID: "sticker-1"},
		Photo:   []PhotoSize{{FileID: "photo-1"}},
	}
	att, ok := extractAttachment(msg)
	require.True(t, ok)
	require.True(t, att.sticker)
	require.Equal(t, "sticker-1", att.fileID)
}

func TestExtractAttachmentPhotoPicksLastSize(t *testing.T) {
	msg := &Message{Photo: []PhotoSize{{FileID: "small"}, {FileID: "large"}}}
	att, ok := extractAttachment(msg)
	require.True(t, ok)
	require.Equal(t, "large", att.fileID)
}

func TestExtractAttachmentFilenameFallback(t *testing.T) {
	msg := &Message{Document: &Document{FileID: "doc-1", MimeType: "application/pdf"}}
	att, ok := extractAttachment(msg)
	require.True(t, ok)
	require.Equal(t, "file.pdf", att.filename)
}

func TestExtractAttachmentNoMedia(t *testing.T) {
	_, ok := extractAttachment(&Message{Text: "just text"})
	require.False(t, ok)
}

func TestForwardOriginPrefix(t *testing.T) {
	msg := &Message{ForwardOrigin: &MessageOrigin{SenderUserName: "Al"}}
	require.Equal(t, "Message forwarded from Al\n\n", forwardOriginPrefix(msg))

	require.Equal(t, "", forwardOriginPrefix(&Message{}))
}

func TestReplyTextFromAttachmentFilename(t *testing.T) {
	msg := &Message{
		ReplyToMessage: &Message{Sticker: &Sticker{FileID: "s1"}},
	}
	require.Equal(t, "sticker.webp", replyText(msg))
}

func TestReplyTextPrefersTextOverCaption(t *testing.T) {
	msg := &Message{ReplyToMessage: &Message{Text: "hello", Caption: "ignored"}}
	require.Equal(t, "hello", replyText(msg))
}
