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
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Uploader puts attachment bytes on the XP-side HTTP upload endpoint (the
// protocol-shaped behavior of XEP-0363 this bridge needs) and hands back the
// public URL the uploaded file is reachable at, which is what actually gets
// embedded in an outbound stanza's out-of-band-URL extension. Slot
// negotiation over XMPP IQ is not implemented - mattn/go-xmpp exposes no IQ
// round-trip primitive to build it on, so the upload target is a
// pre-configured base URL the bytes are PUT under, the same shape the
// original's synchronous "upload, get URL back" call has from the bridge's
// point of view.
type Uploader struct {
	baseURL    string
	httpClient *http.Client
}

// NewUploader creates an Uploader rooted at baseURL.
func NewUploader(baseURL string) *Uploader {
	return &Uploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload PUTs body (size bytes, the given mime) to a fresh path under the
// upload base and returns the URL it's reachable at afterwards.
func (u *Uploader) Upload(ctx context.Context, filename string, body io.Reader, size int64, mime string) (string, error) {
	url := u.baseURL + "/" + newStanzaID() + "/" + filename

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return "", errors.Wrap(err, "build upload request")
	}
	req.ContentLength = size
	if mime != "" {
		req.Header.Set("Content-Type", mime)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload attachment")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", errors.Errorf("upload attachment: unexpected status %d", resp.StatusCode)
	}
	return url, nil
}

// Probe HEAD-checks that url is still reachable, used to validate a
// sticker's cached upload URL before reusing it. Any failure or non-404
// status is treated as "still there" - only a confirmed 404 counts as a
// cache miss.
func (u *Uploader) Probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return true
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return true
	}
	defer resp.Body.Close()
	return resp.StatusCode != http.StatusNotFound
}
