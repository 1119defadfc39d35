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
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	goxmpp "github.com/mattn/go-xmpp"
)

const (
	nsMessageCorrect = "urn:xmpp:message-correct:0"
	nsStanzaID       = "urn:xmpp:sid:0"
	nsDirectInvite   = "jabber:x:conference"
	nsMUCUser        = "http://jabber.org/protocol/muc#user"
)

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// InboundStanza is the bridge's own normalized view of whatever the
// transport received: a plain chat/groupchat body, one of the message
// extensions this bridge cares about (an out-of-band URL attachment, a
// message-correction replace, a room invitation, a groupchat error), or a
// presence change. The concrete transport is responsible for recognizing
// these from whatever the underlying client exposes.
type InboundStanza struct {
	From         string
	Type         string // "chat", "groupchat", "error", "invite", "presence"
	Body         string
	OOBURL       string
	ReplaceID    string
	StanzaID     string
	Reason       string // invitation reason (the handshake key) for Type=="invite"
	ErrorText    string
	PresenceType string // raw presence type ("unavailable", ...) for Type=="presence"
}

// Transport is everything the actor/listener session layer needs from the
// underlying XMPP connection. It exists so the bridge's session lifecycle,
// actor pool, and message translation - the actual engineering this bridge
// is about - can be exercised independently of the wire-level client,
// which is this bridge's one genuinely external collaborator.
type Transport interface {
	Recv() (InboundStanza, error)
	SendGroupchat(to, stanzaID, body, replaceID, oobURL string) error
	SendChat(to, body string) error
	JoinMUCNoHistory(room, nick string) error
	LeaveMUC(room, nick string) error
	Roster() error
	Close() error
}

// libTransport adapts github.com/mattn/go-xmpp's Client to Transport.
type libTransport struct {
	client *goxmpp.Client
}

// DialOptions are the per-session connection parameters.
type DialOptions struct {
	Host     string
	User     string
	Password string
	Resource string
}

// Dial opens a new XMPP session.
func Dial(opts DialOptions) (Transport, error) {
	options := goxmpp.Options{
		Host:     opts.Host,
		User:     opts.User,
		Password: opts.Password,
		Resource: opts.Resource,
		Status:   "",
		NoTLS:    false,
		StartTLS: true,
		Session:  true,
	}
	client, err := options.NewClient()
	if err != nil {
		return nil, fmt.Errorf("connect to xmpp server: %w", err)
	}
	return &libTransport{client: client}, nil
}

func (t *libTransport) Recv() (InboundStanza, error) {
	event, err := t.client.Recv()
	if err != nil {
		return InboundStanza{}, err
	}

	switch v := event.(type) {
	case goxmpp.Chat:
		return chatToStanza(v), nil
	case goxmpp.Presence:
		return InboundStanza{From: v.From, Type: "presence", PresenceType: v.Type}, nil
	default:
		return InboundStanza{Type: "unknown"}, nil
	}
}

func attrValue(el goxmpp.XMLElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// chatToStanza maps a parsed go-xmpp Chat event onto the bridge's own
// InboundStanza. The body, type, and out-of-band URL come straight off the
// library's typed fields; the message-correction replace id, the MUC
// stanza id, and both invitation flavors (direct and mediated) arrive as
// unparsed child elements and are recovered from Chat.OtherElem.
func chatToStanza(c goxmpp.Chat) InboundStanza {
	s := InboundStanza{From: c.Remote, Type: c.Type, Body: c.Text, OOBURL: c.Ooburl}

	for _, el := range c.OtherElem {
		switch {
		case el.XMLName.Space == nsMessageCorrect && el.XMLName.Local == "replace":
			s.ReplaceID = attrValue(el, "id")
		case el.XMLName.Space == nsStanzaID && el.XMLName.Local == "stanza-id":
			s.StanzaID = attrValue(el, "id")
		case el.XMLName.Space == nsDirectInvite && el.XMLName.Local == "x":
			s.Type = "invite"
			if room := attrValue(el, "jid"); room != "" {
				s.From = room
			}
			s.Reason = attrValue(el, "reason")
		case el.XMLName.Space == nsMUCUser && el.XMLName.Local == "x" && strings.Contains(el.InnerXML, "<invite"):
			s.Type = "invite"
			s.Reason = mediatedInviteReason(el.InnerXML)
		case el.XMLName.Local == "error":
			s.ErrorText = errorText(el.InnerXML)
		}
	}

	if c.Type == "error" && s.ErrorText == "" {
		s.ErrorText = strings.Join(c.Other, " ")
	}
	return s
}

// mediatedInviteReason digs the <reason> text out of a XEP-0045 mediated
// invitation's muc#user payload.
func mediatedInviteReason(innerXML string) string {
	var payload struct {
		Invite struct {
			Reason string `xml:"reason"`
		} `xml:"invite"`
	}
	wrapped := "<x>" + innerXML + "</x>"
	if err := xml.Unmarshal([]byte(wrapped), &payload); err != nil {
		return ""
	}
	return payload.Invite.Reason
}

// errorText extracts the human-readable <text> child of an error element,
// falling back to the raw payload when there is none.
func errorText(innerXML string) string {
	var payload struct {
		Text string `xml:"text"`
	}
	wrapped := "<error>" + innerXML + "</error>"
	if err := xml.Unmarshal([]byte(wrapped), &payload); err != nil || payload.Text == "" {
		return innerXML
	}
	return payload.Text
}

// SendGroupchat sends a raw groupchat stanza rather than going through the
// typed Chat helper, because the bridge needs to set its own stanza id and,
// conditionally, a XEP-0308 replacement element or a XEP-0066 out-of-band
// URL element - none of which goxmpp.Chat exposes on the send path.
func (t *libTransport) SendGroupchat(to, stanzaID, body, replaceID, oobURL string) error {
	var extensions strings.Builder
	if replaceID != "" {
		fmt.Fprintf(&extensions, "<replace id='%s' xmlns='%s'/>", xmlEscape(replaceID), nsMessageCorrect)
	}
	if oobURL != "" {
		fmt.Fprintf(&extensions, "<x xmlns='jabber:x:oob'><url>%s</url></x>", xmlEscape(oobURL))
	}

	stanza := fmt.Sprintf(
		"<message to='%s' id='%s' type='groupchat'><body>%s</body>%s</message>",
		xmlEscape(to), xmlEscape(stanzaID), xmlEscape(body), extensions.String(),
	)
	_, err := t.client.SendOrg(stanza)
	return err
}

func (t *libTransport) SendChat(to, body string) error {
	_, err := t.client.Send(goxmpp.Chat{Remote: to, Type: "chat", Text: body})
	return err
}

func (t *libTransport) JoinMUCNoHistory(room, nick string) error {
	_, err := t.client.JoinMUCNoHistory(room, nick)
	return err
}

// LeaveMUC sends unavailable presence to the room/nick occupant JID. The
// typed client's own leave helper addresses the bare room JID instead of
// the occupant JID, so this goes out as a raw stanza the same way the
// extension-bearing sends in SendGroupchat do.
func (t *libTransport) LeaveMUC(room, nick string) error {
	_, err := t.client.SendOrg(fmt.Sprintf("<presence to='%s/%s' type='unavailable'/>", xmlEscape(room), xmlEscape(nick)))
	return err
}

func (t *libTransport) Roster() error {
	return t.client.Roster()
}

func (t *libTransport) Close() error {
	return t.client.Close()
}

// reconnectDelay separates disconnect detection from the reconnect
// attempt.
const reconnectDelay = 5 * time.Second
