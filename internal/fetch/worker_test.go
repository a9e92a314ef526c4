package fetch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}
	return buf.Bytes()
}

func waitCall(t *testing.T, c *Call) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("call did not complete")
	}
	return res
}

func TestFetchCoalescesInFlightURL(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte{1, 2, 3})
	}))
	defer srv.Close()

	w := NewWorker(Config{Workers: 2})
	defer w.Close()

	a := w.Fetch(srv.URL+"/tilemap-0-0.bin", KindBytes, false)
	b := w.Fetch(srv.URL+"/tilemap-0-0.bin", KindBytes, false)
	if a != b {
		t.Error("Fetch() returned distinct calls for an in-flight URL")
	}
	if w.Pending() != 1 {
		t.Errorf("Pending() = %d, expected 1", w.Pending())
	}

	close(release)
	res := waitCall(t, a)
	if res.Err != nil {
		t.Fatalf("Result().Err = %v", res.Err)
	}
	if !bytes.Equal(res.Body, []byte{1, 2, 3}) {
		t.Errorf("Body = %v, expected [1 2 3]", res.Body)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, expected 1", hits.Load())
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() after resolve = %d, expected 0", w.Pending())
	}

	// A resolved URL is fetched again.
	waitCall(t, w.Fetch(srv.URL+"/tilemap-0-0.bin", KindBytes, false))
	if hits.Load() != 2 {
		t.Errorf("server hits after refetch = %d, expected 2", hits.Load())
	}
}

func TestFetchStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	w := NewWorker(DefaultConfig())
	defer w.Close()

	tests := []struct {
		path   string
		absent bool
	}{
		{"/missing", true},
		{"/forbidden", true},
		{"/broken", false},
	}

	for _, tc := range tests {
		res := waitCall(t, w.Fetch(srv.URL+tc.path, KindBytes, false))
		if res.Err == nil {
			t.Errorf("%s: Err = nil, expected a status error", tc.path)
			continue
		}
		if got := IsAbsent(res.Err); got != tc.absent {
			t.Errorf("IsAbsent(%s) = %v, expected %v", tc.path, got, tc.absent)
		}
	}
}

func TestFetchImageWithMeta(t *testing.T) {
	body := pngBytes(t, 8, 4)
	meta := Meta{
		Title:       "Harbor",
		Subtitle:    "at dusk",
		Description: "long exposure, ñ",
		Link:        "https://example.com",
		Details:     map[string]any{"iso": float64(100)},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta.WriteHeader(w.Header())
		w.Write(body)
	}))
	defer srv.Close()

	w := NewWorker(DefaultConfig())
	defer w.Close()

	res := waitCall(t, w.Fetch(srv.URL+"/tile-1-2-64.jpg", KindImage, false))
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.Image == nil {
		t.Fatal("Image = nil")
	}
	if res.Image.Width() != 8 || res.Image.Height() != 4 {
		t.Errorf("Image size = %dx%d, expected 8x4", res.Image.Width(), res.Image.Height())
	}
	if res.Meta.Title != meta.Title || res.Meta.Description != meta.Description || res.Meta.Link != meta.Link {
		t.Errorf("Meta = %+v, expected %+v", res.Meta, meta)
	}
	if res.Meta.Details["iso"] != float64(100) {
		t.Errorf("Meta.Details = %v, expected iso=100", res.Meta.Details)
	}
}

func TestFetchDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	w := NewWorker(DefaultConfig())
	defer w.Close()

	res := waitCall(t, w.Fetch(srv.URL+"/tile-0-0-64.jpg", KindImage, false))
	if !errors.Is(res.Err, ErrDecode) {
		t.Errorf("Err = %v, expected ErrDecode", res.Err)
	}
	if IsAbsent(res.Err) {
		t.Error("IsAbsent() = true for a decode failure")
	}
}

func TestReloadSendsNoCache(t *testing.T) {
	var header atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Cache-Control"))
	}))
	defer srv.Close()

	w := NewWorker(DefaultConfig())
	defer w.Close()

	waitCall(t, w.Fetch(srv.URL+"/x", KindBytes, true))
	if got, _ := header.Load().(string); got != "no-cache" {
		t.Errorf("Cache-Control = %q, expected %q", got, "no-cache")
	}
}

func TestReloadSupersedesInFlightCall(t *testing.T) {
	var plain, fresh atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cache-Control") == "no-cache" {
			fresh.Add(1)
		} else {
			plain.Add(1)
		}
		<-release
	}))
	defer srv.Close()

	w := NewWorker(Config{Workers: 2})
	defer w.Close()

	url := srv.URL + "/tile-1-1-64.jpg"
	a := w.Fetch(url, KindBytes, false)
	b := w.Fetch(url, KindBytes, true)
	if a == b {
		t.Fatal("Fetch(reload) joined a call that may be served from cache")
	}
	if c := w.Fetch(url, KindBytes, true); c != b {
		t.Error("Fetch(reload) did not join the reload in flight")
	}
	if c := w.Fetch(url, KindBytes, false); c != b {
		t.Error("Fetch() did not join the reload in flight")
	}

	close(release)
	waitCall(t, a)
	waitCall(t, b)
	if plain.Load() != 1 || fresh.Load() != 1 {
		t.Errorf("server hits = %d plain %d fresh, expected 1 and 1", plain.Load(), fresh.Load())
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() after resolve = %d, expected 0", w.Pending())
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	w := NewWorker(Config{Workers: 1})
	c := w.Fetch(srv.URL+"/slow", KindBytes, false)
	w.Close()

	res := waitCall(t, c)
	if res.Err == nil {
		t.Fatal("Err = nil after Close")
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d, expected 0", w.Pending())
	}

	late := waitCall(t, w.Fetch(srv.URL+"/late", KindBytes, false))
	if !errors.Is(late.Err, ErrClosed) {
		t.Errorf("Fetch() after Close: Err = %v, expected ErrClosed", late.Err)
	}
}

func TestMetaFill(t *testing.T) {
	m := Meta{Title: "kept"}
	m.Fill(Meta{Title: "ignored", Subtitle: "added"})

	if m.Title != "kept" || m.Subtitle != "added" {
		t.Errorf("Fill() = %+v, expected Title=kept Subtitle=added", m)
	}
	if m.IsZero() {
		t.Error("IsZero() = true for a filled meta")
	}
}
