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
	"encoding/xml"
	"testing"

	goxmpp "github.com/mattn/go-xmpp"
	"github.com/stretchr/testify/require"
)

func elem(space, local string, attrs map[string]string, innerXML string) goxmpp.XMLElement {
	el := goxmpp.XMLElement{
		XMLName:  xml.Name{Space: space, Local: local},
		InnerXML: innerXML,
	}
	for k, v := range attrs {
		el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: k}, Value: v})
	}
	return el
}

func TestChatToStanzaPlainGroupchat(t *testing.T) {
	s := chatToStanza(goxmpp.Chat{Remote: "room@conf.example.org/nick", Type: "groupchat", Text: "hi"})
	require.Equal(t, "groupchat", s.Type)
	require.Equal(t, "room@conf.example.org/nick", s.From)
	require.Equal(t, "hi", s.Body)
	require.Empty(t, s.ReplaceID)
}

func TestChatToStanzaOOBURL(t *testing.T) {
	s := chatToStanza(goxmpp.Chat{
		Remote: "room@conf.example.org/nick",
		Type:   "groupchat",
		Text:   "https://files.example.org/photo.jpg",
		Ooburl: "https://files.example.org/photo.jpg",
	})
	require.Equal(t, "https://files.example.org/photo.jpg", s.OOBURL)
}

func TestChatToStanzaReplaceAndStanzaID(t *testing.T) {
	s := chatToStanza(goxmpp.Chat{
		Remote: "room@conf.example.org/nick",
		Type:   "groupchat",
		Text:   "hi2",
		OtherElem: []goxmpp.XMLElement{
			elem(nsMessageCorrect, "replace", map[string]string{"id": "orig-1"}, ""),
			elem(nsStanzaID, "stanza-id", map[string]string{"id": "sid-9", "by": "room@conf.example.org"}, ""),
		},
	})
	require.Equal(t, "orig-1", s.ReplaceID)
	require.Equal(t, "sid-9", s.StanzaID)
}

func TestChatToStanzaDirectInvite(t *testing.T) {
	s := chatToStanza(goxmpp.Chat{
		Remote: "admin@example.org/phone",
		OtherElem: []goxmpp.XMLElement{
			elem(nsDirectInvite, "x", map[string]string{"jid": "room@conf.example.org", "reason": "s3cr3t"}, ""),
		},
	})
	require.Equal(t, "invite", s.Type)
	require.Equal(t, "room@conf.example.org", s.From)
	require.Equal(t, "s3cr3t", s.Reason)
}

func TestChatToStanzaMediatedInvite(t *testing.T) {
	s := chatToStanza(goxmpp.Chat{
		Remote: "room@conf.example.org",
		OtherElem: []goxmpp.XMLElement{
			elem(nsMUCUser, "x", nil, "<invite from='admin@example.org'><reason>s3cr3t</reason></invite>"),
		},
	})
	require.Equal(t, "invite", s.Type)
	require.Equal(t, "room@conf.example.org", s.From)
	require.Equal(t, "s3cr3t", s.Reason)
}

func TestChatToStanzaErrorText(t *testing.T) {
	s := chatToStanza(goxmpp.Chat{
		Remote: "room@conf.example.org",
		Type:   "error",
		OtherElem: []goxmpp.XMLElement{
			elem("jabber:client", "error", map[string]string{"type": "auth"},
				"<text xmlns='urn:ietf:params:xml:ns:xmpp-stanzas'>Only occupants are allowed to send messages to the conference</text>"),
		},
	})
	require.Equal(t, "error", s.Type)
	require.Contains(t, s.ErrorText, "Only occupants")
}
