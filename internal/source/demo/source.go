package demo

import (
	"net/http"

	"github.com/vovakirdan/tilegrid/internal/config"
	"github.com/vovakirdan/tilegrid/internal/registry"
)

// ID is the registry id of the demo source.
const ID = "demo"

// baseURL never leaves the process; the transport answers every request.
const baseURL = "http://demo.tilegrid.invalid"

func init() {
	registry.Register(ID, func() registry.Source { return Source{} })
}

// Source is the registry entry of the demo content.
type Source struct{}

// ID implements registry.Source.
func (Source) ID() string { return ID }

// Title implements registry.Source.
func (Source) Title() string { return "Procedural demo plots" }

// Open implements registry.Source.
func (Source) Open(cfg config.SourceConfig) (*registry.Endpoint, error) {
	client := &http.Client{Transport: NewTransport(cfg.ChunkSize)}
	return registry.NewEndpoint(ID, baseURL, client), nil
}
