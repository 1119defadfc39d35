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

// Package xmpp implements the XP side of the bridge: the listener session,
// the per-sender impersonation actor pool, and the outbound ChatHandler.
package xmpp

import (
	"regexp"
	"strings"
)

// mobileTimestampMarker matches the quoted-timestamp line some mobile
// clients prepend to a reply's quote block, e.g. "2024-03-02  14:05 (GMT+1)".
// It is not part of the quoted text and the reply line that precedes it
// (the sender-name header those same clients add) has to be discarded too.
var mobileTimestampMarker = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s{2}\d{2}:\d{2} \(GMT[+-]\d+\)$`)

// parseReply splits an inbound groupchat body into its quoted reply and the
// actual message body, applying the bridge's exact prefix-quote rules:
//
//   - a line starting "> " (greater-than, space) is a candidate reply line;
//     the prefix is stripped. If what remains is a mobile-client timestamp
//     marker, it isn't reply text - discard it AND the reply line before it
//     (typically a sender-name header the client also quoted).
//   - a line starting ">" without a following space is ignored.
//   - a line starting "> >" (a nested quote) is ignored.
//   - any other line is a body line.
//
// Reply lines are joined with newlines, same for body lines; either may be
// empty.
func parseReply(text string) (reply, body string) {
	var replyLines, bodyLines []string

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "> >"):
			// nested quote, ignore entirely
		case strings.HasPrefix(line, "> "):
			stripped := strings.TrimPrefix(line, "> ")
			if mobileTimestampMarker.MatchString(stripped) {
				if len(replyLines) > 0 {
					replyLines = replyLines[:len(replyLines)-1]
				}
				continue
			}
			replyLines = append(replyLines, stripped)
		case strings.HasPrefix(line, ">"):
			// ">" with no following space, ignore
		default:
			bodyLines = append(bodyLines, line)
		}
	}

	return strings.Join(replyLines, "\n"), strings.Join(bodyLines, "\n")
}

// quoteReply builds the "> "-prefixed block placed ahead of an outbound
// message body when it carries a reply; newlines inside the reply are
// themselves prefixed.
func quoteReply(reply string) string {
	lines := strings.Split(reply, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
