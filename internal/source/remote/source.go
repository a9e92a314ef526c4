// Package remote opens tile content hosted in an S3-compatible bucket or a
// `tilegrid bucket` server, and follows the server's live updates.
package remote

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/registry"
)

// ID is the registry id of bucket-hosted content.
const ID = "bucket"

func init() {
	registry.Register(ID, func() registry.Source { return Source{} })
}

// Source is the registry entry of bucket-hosted content.
type Source struct{}

// ID implements registry.Source.
func (Source) ID() string { return ID }

// Title implements registry.Source.
func (Source) Title() string { return "Bucket over HTTP" }

// Open implements registry.Source.
func (Source) Open(cfg config.SourceConfig) (*registry.Endpoint, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("source.base_url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	// Positions are stored per bucket, not per source id.
	key := ID + ":" + u.Host + strings.TrimRight(u.Path, "/")
	ep := registry.NewEndpoint(key, cfg.BaseURL, &http.Client{})
	if cfg.Live {
		ep.EventsURL = EventsURL(u)
	}
	return ep, nil
}

// EventsURL returns the websocket URL of the events stream under base.
func EventsURL(base *url.URL) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	u.RawQuery = ""
	return u.String()
}
