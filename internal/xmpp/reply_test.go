package xmpp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReplySimple(t *testing.T) {
	reply, body := parseReply("> hi\nyes")
	require.Equal(t, "hi", reply)
	require.Equal(t, "yes", body)
}

func TestParseReplyNestedQuoteIgnored(t *testing.T) {
	reply, body := parseReply("> >nested\n> line1\nbody")
	require.Equal(t, "line1", reply)
	require.Equal(t, "body", body)
}

func TestParseReplyMobileTimestampDiscardsHeaderLine(t *testing.T) {
	reply, body := parseReply("> Al Someone\n> 2024-03-02  14:05 (GMT+1)\n> hi\nyes")
	require.Equal(t, "hi", reply)
	require.Equal(t, "yes", body)
}

func TestParseReplyBareGreaterThanIgnored(t *testing.T) {
	reply, body := parseReply(">no space\nbody")
	require.Equal(t, "", reply)
	require.Equal(t, "body", body)
}

func TestParseReplyNoReply(t *testing.T) {
	reply, body := parseReply("just text")
	require.Equal(t, "", reply)
	require.Equal(t, "just text", body)
}

func TestQuoteReplyPrefixesEveryLine(t *testing.T) {
	require.Equal(t, "> a\n> b", quoteReply("a\nb"))
}
