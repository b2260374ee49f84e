package client

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadCookies seeds the jar from a file written by SaveCookies. A missing
// file is not an error.
func (c *Client) LoadCookies(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read cookie file")
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return errors.Wrapf(err, "malformed cookie file %s", path)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value, Path: "/"})
	}
	c.httpClient.Jar.SetCookies(c.baseURL, cookies)
	return nil
}

// SaveCookies writes the jar's cookies for the base URL with owner-only permissions.
// An empty jar removes the file.
func (c *Client) SaveCookies(path string) error {
	cookies := c.httpClient.Jar.Cookies(c.baseURL)
	if len(cookies) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, "failed to remove cookie file")
		}
		return nil
	}

	stored := make([]storedCookie, 0, len(cookies))
	for _, cookie := range cookies {
		stored = append(stored, storedCookie{Name: cookie.Name, Value: cookie.Value})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode cookies")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create cookie directory")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o600), "failed to write cookie file")
}
