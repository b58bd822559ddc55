// Package dispatch runs orchestrator requests in the background. Requests
// for the same page run one at a time in submission order; different pages
// run in parallel.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/orchestrator"
)

// ErrStopped is returned by Submit after Shutdown.
var ErrStopped = errors.New("dispatcher is stopped")

// Runner processes one request.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Report, error)
}

// DoneFunc observes finished requests.
type DoneFunc func(req orchestrator.Request, report *orchestrator.Report, err error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRunTimeout bounds each request. Zero disables the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(p *Dispatcher) { p.timeout = d }
}

// WithDoneFunc registers a completion callback. It runs on the page worker,
// so the next request of that page waits for it.
func WithDoneFunc(fn DoneFunc) Option {
	return func(p *Dispatcher) { p.done = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Dispatcher) {
		if l != nil {
			p.log = l
		}
	}
}

// Dispatcher owns one mailbox per busy page. A worker goroutine exists only
// while its mailbox is non-empty.
type Dispatcher struct {
	runner  Runner
	timeout time.Duration
	done    DoneFunc
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mailboxes map[string][]orchestrator.Request
	stopped   bool
	wg        sync.WaitGroup
}

// New creates a Dispatcher feeding runner.
func New(runner Runner, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		runner:    runner,
		log:       logger.Global().WithPrefix("dispatch"),
		ctx:       ctx,
		cancel:    cancel,
		mailboxes: make(map[string][]orchestrator.Request),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit queues req behind earlier requests for the same page and returns
// immediately.
func (d *Dispatcher) Submit(req orchestrator.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}
	queue, busy := d.mailboxes[req.PageID]
	d.mailboxes[req.PageID] = append(queue, req)
	if !busy {
		d.wg.Add(1)
		go d.drain(req.PageID)
	}
	d.log.Debug("queued message %s for page %s (%d waiting)", req.MessageID, req.PageID, len(queue))
	return nil
}

// Pending returns the number of queued or running requests of a page.
func (d *Dispatcher) Pending(pageID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mailboxes[pageID])
}

// drain runs the page mailbox until it is empty. The running request stays
// at the head of the queue so Submit sees the page as busy.
func (d *Dispatcher) drain(pageID string) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.mailboxes[pageID]
		if len(queue) == 0 {
			delete(d.mailboxes, pageID)
			d.mu.Unlock()
			return
		}
		req := queue[0]
		d.mu.Unlock()

		d.execute(req)

		d.mu.Lock()
		d.mailboxes[pageID] = d.mailboxes[pageID][1:]
		d.mu.Unlock()
	}
}

func (d *Dispatcher) execute(req orchestrator.Request) {
	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var (
		report *orchestrator.Report
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("panic running message %s: %v", req.MessageID, r)
				err = errors.New("orchestrator panicked")
			}
		}()
		report, err = d.runner.Run(ctx, req)
	}()

	if err != nil {
		d.log.Warn("message %s on page %s failed: %v", req.MessageID, req.PageID, err)
	}
	if d.done != nil {
		d.done(req, report, err)
	}
}

// Wait blocks until every queued request has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting requests and waits for queued ones. When ctx
// expires first, running requests are cancelled and ctx's error returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-finished
		return ctx.Err()
	}
}
