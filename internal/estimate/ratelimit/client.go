package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// ErrClosed is returned when enqueueing on a closed client.
var ErrClosed = errors.New("ratelimit: client closed")

// Options tunes the retry policy shared by all providers.
type Options struct {
	MaxRetries  int           // additional attempts after the first failure
	BackoffBase time.Duration // first retry delay, doubled on each retry
}

// DefaultOptions matches the external providers' published limits.
func DefaultOptions() Options {
	return Options{MaxRetries: 2, BackoffBase: 500 * time.Millisecond}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as retryable. Provider clients wrap timeouts,
// HTTP 429 and 5xx responses with it so the dispatch loop knows it may retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}

type result struct {
	value interface{}
	err   error
}

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) (interface{}, error)
	done chan result
}

type provider struct {
	id       string
	interval time.Duration
	jobs     chan job
}

// Client serializes outbound calls per provider. Requests for the same
// provider are dispatched strictly in enqueue order, each at least the
// provider's minimum interval after the previous dispatch. Different
// providers never block each other.
type Client struct {
	opts Options

	mu        sync.Mutex
	providers map[string]*provider
	wg        sync.WaitGroup

	// sendMu serializes Close against in-flight Enqueue sends: senders hold
	// the read side across the closed check and the channel send, so a jobs
	// channel is never closed while a send is in progress.
	sendMu sync.RWMutex
	closed bool
}

// New creates a client with no registered providers.
func New(opts Options) *Client {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	return &Client{opts: opts, providers: make(map[string]*provider)}
}

// Register adds a provider queue with the given minimum inter-dispatch
// interval and starts its dispatch worker. Registering the same id twice
// is an error.
func (c *Client) Register(providerID string, minInterval time.Duration) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.providers[providerID]; ok {
		return fmt.Errorf("ratelimit: provider %q already registered", providerID)
	}
	p := &provider{id: providerID, interval: minInterval, jobs: make(chan job, 64)}
	c.providers[providerID] = p
	c.wg.Add(1)
	go c.dispatch(p)
	return nil
}

// Enqueue queues fn on the provider's FIFO queue and waits for its result.
// A context cancelled while the job is still queued makes Enqueue return
// immediately; the worker later discards the job without dispatching it,
// so a cancelled request never consumes provider budget or stalls the queue.
func (c *Client) Enqueue(ctx context.Context, providerID string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	p, ok := c.providers[providerID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("ratelimit: unknown provider %q", providerID)
	}

	jb := job{ctx: ctx, fn: fn, done: make(chan result, 1)}

	// The read lock covers both the closed check and the send, so Close
	// cannot close p.jobs between them.
	c.sendMu.RLock()
	if c.closed {
		c.sendMu.RUnlock()
		return nil, ErrClosed
	}
	select {
	case p.jobs <- jb:
		c.sendMu.RUnlock()
	case <-ctx.Done():
		c.sendMu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-jb.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops all dispatch workers and waits for them to exit. A job
// already executing runs to completion; jobs still queued are answered
// with ErrClosed instead of being dispatched.
func (c *Client) Close() {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return
	}
	c.closed = true
	c.sendMu.Unlock()

	c.mu.Lock()
	for _, p := range c.providers {
		close(p.jobs)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Client) isClosed() bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	return c.closed
}

func (c *Client) dispatch(p *provider) {
	defer c.wg.Done()
	var lastDispatch time.Time

	for jb := range p.jobs {
		if c.isClosed() {
			jb.done <- result{err: ErrClosed}
			continue
		}
		if err := jb.ctx.Err(); err != nil {
			jb.done <- result{err: err}
			continue
		}
		value, err := c.attempt(p, jb, &lastDispatch)
		jb.done <- result{value: value, err: err}
	}
}

// attempt runs the job with retries. Every attempt, including retries, waits
// for its turn against the provider's minimum interval; backoff sleeps overlap
// that wait, so backoff time counts toward rate-limit spacing.
func (c *Client) attempt(p *provider, jb job, lastDispatch *time.Time) (interface{}, error) {
	backoff := c.opts.BackoffBase
	for retry := 0; ; retry++ {
		if err := waitTurn(jb.ctx, p.interval, *lastDispatch); err != nil {
			return nil, err
		}
		*lastDispatch = time.Now()

		value, err := jb.fn(jb.ctx)
		if err == nil {
			return value, nil
		}
		if !IsTransient(err) || retry >= c.opts.MaxRetries {
			return nil, err
		}
		select {
		case <-time.After(jitter(backoff)):
		case <-jb.ctx.Done():
			return nil, jb.ctx.Err()
		}
		backoff *= 2
	}
}

func waitTurn(ctx context.Context, interval time.Duration, lastDispatch time.Time) error {
	if lastDispatch.IsZero() {
		return nil
	}
	wait := interval - time.Since(lastDispatch)
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jitter spreads retries by +/-20% so synchronized callers do not retry in
// lockstep against an already struggling provider.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := int64(d) / 5
	return time.Duration(int64(d) - spread + rand.Int63n(2*spread+1))
}
