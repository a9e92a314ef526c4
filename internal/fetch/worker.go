// Package fetch runs network I/O and image decoding off the render loop.
//
// A Worker owns a pool of goroutines that receive requests over a channel
// and post responses back over another. Callers never share state with the
// pool: every request carries an ID and a response is matched to its Call
// through the correlation map, keyed by URL so that concurrent requests for
// the same resource share one outstanding fetch.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"
	_ "golang.org/x/image/webp" // Register WebP decoder
	"golang.org/x/time/rate"
)

// maxBodySize bounds a single response body.
const maxBodySize = 32 << 20

// Kind selects what a request produces.
type Kind uint8

const (
	// KindBytes returns the raw response body.
	KindBytes Kind = iota
	// KindImage decodes the body into a bitmap.
	KindImage
)

// Result is the outcome of one fetch.
type Result struct {
	URL   string
	Body  []byte       // KindBytes only
	Image *gg.ImageBuf // KindImage only
	Meta  Meta
	Err   error
}

// Call is a pending fetch shared by every caller that asked for its URL.
type Call struct {
	url    string
	reload bool
	done   chan struct{}
	result Result
}

// Done is closed once the result is available.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result blocks until the fetch has completed and returns its outcome.
func (c *Call) Result() Result {
	<-c.done
	return c.result
}

// Wait is like Result but gives up when ctx is done.
func (c *Call) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		return c.result, c.result.Err
	case <-ctx.Done():
		return Result{URL: c.url}, ctx.Err()
	}
}

// Config holds worker settings.
type Config struct {
	// Workers is the number of fetch goroutines.
	Workers int

	// QueueSize is the request channel buffer.
	QueueSize int

	// RequestsPerSecond limits outgoing requests; zero disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter burst size.
	Burst int

	// Timeout bounds one request including reading its body.
	Timeout time.Duration

	// Client performs requests; http.DefaultClient when nil.
	Client *http.Client

	// Logger receives fetch diagnostics; discarded when nil.
	Logger *log.Logger
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 256,
		Burst:     16,
		Timeout:   15 * time.Second,
	}
}

type request struct {
	id     uint64
	url    string
	kind   Kind
	reload bool
}

type response struct {
	id     uint64
	result Result
}

// Worker is an offloaded fetch and decode context.
type Worker struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
	timeout time.Duration

	requests  chan request
	responses chan response

	mu     sync.Mutex
	nextID uint64
	calls  map[uint64]*Call
	byURL  map[string]uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker starts a worker pool with the given configuration.
func NewWorker(cfg Config) *Worker {
	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		client:    cfg.Client,
		logger:    cfg.Logger,
		timeout:   cfg.Timeout,
		requests:  make(chan request, cfg.QueueSize),
		responses: make(chan response, cfg.Workers),
		calls:     make(map[uint64]*Call),
		byURL:     make(map[string]uint64),
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = defaults.Burst
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	w.wg.Add(cfg.Workers + 1)
	for i := 0; i < cfg.Workers; i++ {
		go w.run()
	}
	go w.dispatch()

	return w
}

// Fetch requests url and returns the pending call for it. A request for a
// URL already in flight returns the existing call, unless reload is set and
// the call in flight may be served from cache; then a fresh call replaces it
// for later callers. Fetch never blocks on the network.
func (w *Worker) Fetch(url string, kind Kind, reload bool) *Call {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		c := &Call{url: url, done: make(chan struct{}), result: Result{URL: url, Err: ErrClosed}}
		close(c.done)
		return c
	}
	if id, ok := w.byURL[url]; ok {
		if c := w.calls[id]; c.reload || !reload {
			w.mu.Unlock()
			return c
		}
	}

	w.nextID++
	id := w.nextID
	c := &Call{url: url, reload: reload, done: make(chan struct{})}
	w.calls[id] = c
	w.byURL[url] = id
	w.mu.Unlock()

	req := request{id: id, url: url, kind: kind, reload: reload}
	select {
	case w.requests <- req:
	default:
		// Queue full: hand off without stalling the caller.
		go w.enqueue(req)
	}
	return c
}

// Pending returns the number of unresolved calls.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

// Close stops the pool. Calls still pending fail with ErrClosed.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()

	w.mu.Lock()
	ids := make([]uint64, 0, len(w.calls))
	for id := range w.calls {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	for _, id := range ids {
		w.resolve(response{id: id, result: Result{Err: ErrClosed}})
	}
	return nil
}

func (w *Worker) enqueue(req request) {
	select {
	case w.requests <- req:
	case <-w.ctx.Done():
	}
}

// run is one fetch goroutine.
func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case req := <-w.requests:
			res := w.do(req)
			select {
			case w.responses <- response{id: req.id, result: res}:
			case <-w.ctx.Done():
				return
			}
		}
	}
}

// dispatch matches responses to their calls.
func (w *Worker) dispatch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case resp := <-w.responses:
			w.resolve(resp)
		}
	}
}

// resolve completes the call for resp and drops its correlation entries.
// Only the first resolution of an ID has any effect.
func (w *Worker) resolve(resp response) {
	w.mu.Lock()
	c, ok := w.calls[resp.id]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.calls, resp.id)
	if w.byURL[c.url] == resp.id {
		delete(w.byURL, c.url)
	}
	w.mu.Unlock()

	c.result = resp.result
	c.result.URL = c.url
	close(c.done)
}

func (w *Worker) do(req request) Result {
	res := Result{URL: req.url}

	if w.limiter != nil {
		if err := w.limiter.Wait(w.ctx); err != nil {
			res.Err = fmt.Errorf("fetch: %s: %w", req.url, err)
			return res
		}
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.url, nil)
	if err != nil {
		res.Err = fmt.Errorf("fetch: cannot build request for %s: %w", req.url, err)
		return res
	}
	if req.reload {
		httpReq.Header.Set("Cache-Control", "no-cache")
	}

	httpResp, err := w.client.Do(httpReq)
	if err != nil {
		res.Err = fmt.Errorf("fetch: cannot get %s: %w", req.url, err)
		return res
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxBodySize))
		res.Err = &StatusError{URL: req.url, Code: httpResp.StatusCode}
		return res
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		res.Err = fmt.Errorf("fetch: cannot read %s: %w", req.url, err)
		return res
	}
	res.Meta = MetaFromHeader(httpResp.Header)

	if req.kind == KindBytes {
		res.Body = body
		return res
	}

	img, err := DecodeImage(body)
	if err != nil {
		w.logger.Warn("image decode failed", "url", req.url, "error", err)
		res.Err = err
		return res
	}
	res.Image = img
	return res
}

// DecodeImage decodes JPEG, PNG, GIF or WebP bytes into an image buffer.
func DecodeImage(data []byte) (*gg.ImageBuf, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return gg.ImageBufFromImage(img), nil
}
