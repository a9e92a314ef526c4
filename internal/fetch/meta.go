package fetch

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// Metadata header names, as written by S3-compatible buckets.
const (
	HeaderTitle       = "X-Amz-Meta-Title"
	HeaderSubtitle    = "X-Amz-Meta-Subtitle"
	HeaderDescription = "X-Amz-Meta-Description" // base64
	HeaderLink        = "X-Amz-Meta-Link"
	HeaderDetails     = "X-Amz-Meta-Details" // base64 JSON
)

// Meta is the optional side-channel metadata of a tile image.
type Meta struct {
	Title       string         `json:"title,omitempty" yaml:"title"`
	Subtitle    string         `json:"subtitle,omitempty" yaml:"subtitle"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Link        string         `json:"link,omitempty" yaml:"link"`
	Details     map[string]any `json:"details,omitempty" yaml:"details"`
}

// IsZero reports whether no field is set.
func (m Meta) IsZero() bool {
	return m.Title == "" && m.Subtitle == "" && m.Description == "" && m.Link == "" && len(m.Details) == 0
}

// Fill copies fields of o into m that are unset in m.
func (m *Meta) Fill(o Meta) {
	if m.Title == "" {
		m.Title = o.Title
	}
	if m.Subtitle == "" {
		m.Subtitle = o.Subtitle
	}
	if m.Description == "" {
		m.Description = o.Description
	}
	if m.Link == "" {
		m.Link = o.Link
	}
	if m.Details == nil {
		m.Details = o.Details
	}
}

// MetaFromHeader extracts metadata from response headers.
// Malformed encoded fields are dropped rather than failing the response.
func MetaFromHeader(h http.Header) Meta {
	m := Meta{
		Title:    h.Get(HeaderTitle),
		Subtitle: h.Get(HeaderSubtitle),
		Link:     h.Get(HeaderLink),
	}
	if raw := h.Get(HeaderDescription); raw != "" {
		if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
			m.Description = string(b)
		}
	}
	if raw := h.Get(HeaderDetails); raw != "" {
		if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
			var details map[string]any
			if json.Unmarshal(b, &details) == nil {
				m.Details = details
			}
		}
	}
	return m
}

// WriteHeader sets the headers MetaFromHeader reads back.
func (m Meta) WriteHeader(h http.Header) {
	if m.Title != "" {
		h.Set(HeaderTitle, m.Title)
	}
	if m.Subtitle != "" {
		h.Set(HeaderSubtitle, m.Subtitle)
	}
	if m.Link != "" {
		h.Set(HeaderLink, m.Link)
	}
	if m.Description != "" {
		h.Set(HeaderDescription, base64.StdEncoding.EncodeToString([]byte(m.Description)))
	}
	if len(m.Details) > 0 {
		if b, err := json.Marshal(m.Details); err == nil {
			h.Set(HeaderDetails, base64.StdEncoding.EncodeToString(b))
		}
	}
}
