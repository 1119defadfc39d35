package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildOutgoingTextNativeReply(t *testing.T) {
	text, entities := buildOutgoingText("Al", "hi", "quoted", true)
	require.Equal(t, "Al: hi", text)
	require.Equal(t, []entity{{Type: "bold", Offset: 0, Length: 2}}, entities)
}

func TestBuildOutgoingTextBlockquoteFallback(t *testing.T) {
	text, entities := buildOutgoingText("Al", "hi", "quoted line", false)
	require.Equal(t, "quoted line\nAl: hi", text)
	require.Equal(t, []entity{
		{Type: "blockquote", Offset: 0, Length: len("quoted line")},
		{Type: "bold", Offset: len("quoted line") + 1, Length: 2},
	}, entities)
}

func TestBuildOutgoingTextNoReply(t *testing.T) {
	text, entities := buildOutgoingText("Al", "hi", "", false)
	require.Equal(t, "Al: hi", text)
	require.Equal(t, []entity{{Type: "bold", Offset: 0, Length: 2}}, entities)
}

func TestMethodForMIME(t *testing.T) {
	cases := map[string]string{
		"image/gif":  "sendAnimation",
		"image/jpeg": "sendPhoto",
		"video/mp4":  "sendVideo",
		"audio/ogg":  "sendAudio",
		"text/plain": "sendDocument",
	}
	for mime, wantMethod := range cases {
		method, _ := methodForMIME(mime)
		require.Equal(t, wantMethod, method, mime)
	}
}

func TestTopicResidenceExpiresAfterWindow(t *testing.T) {
	h := &Handler{residence: make(map[string]*topicTimeoutEntry)}
	h.rememberResidence("sender-1", "7")
	require.Equal(t, "7", h.residentTopic("sender-1"))

	h.residence["sender-1"].at = h.residence["sender-1"].at.Add(-topicResidenceWindow * 2)
	require.Equal(t, "", h.residentTopic("sender-1"))
}
