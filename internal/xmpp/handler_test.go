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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStanzaIDIsUnique(t *testing.T) {
	a := newStanzaID()
	b := newStanzaID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestAttachmentFilenameFromURL(t *testing.T) {
	name := attachmentFilename("https://cdn.example.org/files/photo.jpg", "image/jpeg")
	require.Equal(t, "photo.jpg", name)
}

func TestAttachmentFilenameFallsBackToMIME(t *testing.T) {
	name := attachmentFilename("https://cdn.example.org/download", "image/png")
	require.True(t, len(name) > len(".png"))
	require.Equal(t, ".png", name[len(name)-len(".png"):])
}

func TestAttachmentFilenameFallsBackToBinForUnknownMIME(t *testing.T) {
	name := attachmentFilename("https://cdn.example.org/download", "")
	require.Equal(t, ".bin", name[len(name)-len(".bin"):])
}
