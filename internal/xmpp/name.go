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
	"crypto/sha1" //nolint:gosec // deterministic fallback for empty results, not security
	"encoding/hex"
	"strings"

	"github.com/mozillazg/go-unidecode"

	"github.com/nettlebridge/tgxp/internal/lrucache"
)

// nameMemoSize bounds the validated-name memoization.
const nameMemoSize = 100

// disallowedResourceChars are characters forbidden (or simply unwise) in an
// XMPP resourcepart: JID delimiters, XML-unsafe characters, and control
// characters.
var disallowedResourceChars = map[rune]bool{
	'/': true, '@': true, '"': true, '\'': true,
	'<': true, '>': true, '&': true,
}

var nameCache = lrucache.New[string, string](nameMemoSize)

// validateName normalizes a TG display name into a usable, memoized XMPP
// resourcepart: the name is first transliterated to its deterministic ASCII
// approximation (accented Latin, Cyrillic, RTL scripts, CJK - whatever the
// sender's script), then stripped of disallowed and non-printable
// characters. A name with nothing usable left (e.g. emoji only) falls back
// to a short deterministic hash so the same sender still always maps to the
// same resource.
func validateName(name string) string {
	if cached, ok := nameCache.Get(name); ok {
		return cached
	}

	var b strings.Builder
	for _, r := range unidecode.Unidecode(name) {
		if disallowedResourceChars[r] || r < 0x20 || r > 0x7e {
			continue
		}
		b.WriteRune(r)
	}

	result := strings.TrimSpace(b.String())
	if result == "" {
		result = fallbackName(name)
	}

	nameCache.Put(name, result)
	return result
}

func fallbackName(name string) string {
	sum := sha1.Sum([]byte(name)) //nolint:gosec
	return "user-" + hex.EncodeToString(sum[:])[:8]
}

// actorResource is the full XMPP resource a TG sender's actor session logs
// in with: the validated display name plus the bridge's identity marker.
func actorResource(name string) string {
	return validateName(name) + " (Telegram)"
}
