package nabu

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultCloudURL is the cycle 1 pak archive.
const DefaultCloudURL = "http://cloud.nabu.ca/cycle1/"

// cloudUserAgent is required by the archive servers.
const cloudUserAgent = "NABU"

// CloudSource fetches encrypted paks from a remote archive over HTTP.
// The fetched blob is still encrypted; pair a CloudSource with
// DecryptPak (CloudPakSource does both).
type CloudSource struct {
	// BaseURL is the archive root, including a trailing slash
	BaseURL string

	// Client is the HTTP client to use; nil means http.DefaultClient
	Client *http.Client

	// Fallback, when non-empty, names an .npak file served in place of
	// titles the archive does not have. Leave empty to surface unknown
	// programs to the client instead.
	Fallback string
}

// CloudPakName derives the archive file name for a pak id: the MD5 of
// the six-digit upper-case hex id concatenated with "nabu", upper-cased
// and dash-separated per byte, with an .npak extension.
func CloudPakName(pakID uint32) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%06Xnabu", pakID)))
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, "-") + ".npak"
}

// Fetch retrieves the encrypted blob for a pak id. A missing title is
// ErrUnknownProgram (or the fallback title when one is configured);
// any other HTTP failure is ErrNetwork.
func (c *CloudSource) Fetch(ctx context.Context, pakID uint32) ([]byte, error) {
	blob, status, err := c.get(ctx, CloudPakName(pakID))
	if err != nil {
		return nil, WrapError(ErrNetwork, "cloud fetch failed", int64(pakID), err)
	}
	if status == http.StatusNotFound && c.Fallback != "" {
		blob, status, err = c.get(ctx, c.Fallback)
		if err != nil {
			return nil, WrapError(ErrNetwork, "cloud fallback fetch failed", int64(pakID), err)
		}
	}
	switch {
	case status == http.StatusNotFound:
		return nil, NewPakError(ErrUnknownProgram, "not in cloud archive", pakID)
	case status != http.StatusOK:
		return nil, NewPakError(ErrNetwork, fmt.Sprintf("cloud returned status %d", status), pakID)
	}
	return blob, nil
}

func (c *CloudSource) get(ctx context.Context, name string) ([]byte, int, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultCloudURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+name, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", cloudUserAgent)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return blob, resp.StatusCode, nil
}
