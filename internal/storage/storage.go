// Package storage uploads narration audio and returns its public URL.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

// ErrNotConfigured is returned when remote storage is required but absent.
var ErrNotConfigured = errors.New("audio storage is not configured")

// Uploader stores MP3 bytes for one stop and persona.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, data []byte, routeID, persona, stopID string) (string, error)
}

// ObjectKey names the object for a stop's narration.
func ObjectKey(routeID, persona, stopID string) string {
	return "narration/" + url.PathEscape(routeID) + "/" + url.PathEscape(persona) + "/" + url.PathEscape(stopID) + ".mp3"
}

func publicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}

// Inline embeds audio as a data URL. Used when no bucket is configured.
type Inline struct{}

func (Inline) Name() string { return "inline" }

func (Inline) Upload(_ context.Context, data []byte, _, _, _ string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("no audio to embed")
	}
	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Unconfigured fails every upload with ErrNotConfigured. It is used when the
// deployment requires real storage URLs.
type Unconfigured struct{}

func (Unconfigured) Name() string { return "none" }

func (Unconfigured) Upload(context.Context, []byte, string, string, string) (string, error) {
	return "", ErrNotConfigured
}
