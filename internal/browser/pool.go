package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("browser pool is closed")

const defaultCloseTimeout = 30 * time.Second

// Pool owns the single shared driver session. The driver is created lazily on
// the first Acquire and at most once; a failed initialization is sticky.
// Only one caller holds the driver at a time.
type Pool struct {
	factory Factory
	logger  *zap.Logger
	sem     *semaphore.Weighted

	closeTimeout time.Duration

	initOnce sync.Once
	initErr  error
	driver   Driver

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool. No browser is started until the first Acquire.
func NewPool(factory Factory, logger *zap.Logger) *Pool {
	return &Pool{
		factory: factory,
		logger:  logger.Named("browser_pool"),
		sem:     semaphore.NewWeighted(1),

		closeTimeout: defaultCloseTimeout,
	}
}

// Acquire waits for exclusive access to the driver. The returned release
// function must be called on every exit path; calling it more than once is
// safe. Waiting honors ctx cancellation.
func (p *Pool) Acquire(ctx context.Context) (Driver, func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("waiting for browser session: %w", err)
	}

	if p.isClosed() {
		p.sem.Release(1)
		return nil, nil, ErrPoolClosed
	}

	if err := p.initialize(ctx); err != nil {
		p.sem.Release(1)
		return nil, nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() { p.sem.Release(1) })
	}
	return p.driver, release, nil
}

// With runs fn while holding the driver and releases it afterwards, even if
// fn panics.
func (p *Pool) With(ctx context.Context, fn func(Driver) error) error {
	d, release, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(d)
}

// initialize runs the factory exactly once. The driver must outlive the
// request that happened to trigger it, so cancellation is stripped from ctx.
func (p *Pool) initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		p.logger.Info("Initializing browser session.")
		d, err := p.factory(context.WithoutCancel(ctx))
		if err != nil {
			p.initErr = fmt.Errorf("%w: failed to start browser: %v", schemas.ErrCollaboratorUnavailable, err)
			p.logger.Error("Browser session initialization failed.", zap.Error(err))
			return
		}
		if d == nil {
			p.initErr = fmt.Errorf("%w: browser factory returned no driver", schemas.ErrCollaboratorUnavailable)
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			_ = d.Close()
			p.initErr = ErrPoolClosed
			return
		}
		p.driver = d
		p.logger.Info("Browser session ready.")
	})
	return p.initErr
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Initialized reports whether a driver has been created.
func (p *Pool) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.driver != nil
}

// Close shuts the driver down. Later Acquire calls fail with ErrPoolClosed.
// It waits for the current holder to release the driver, up to the close
// timeout, and then closes it regardless.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.closeTimeout)
	defer cancel()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.logger.Warn("Browser session still in use, closing it anyway.", zap.Duration("waited", p.closeTimeout))
	} else {
		defer p.sem.Release(1)
	}

	p.mu.Lock()
	d := p.driver
	p.mu.Unlock()
	if d == nil {
		return nil
	}
	p.logger.Info("Closing browser session.")
	if err := d.Close(); err != nil {
		return fmt.Errorf("failed to close browser session: %w", err)
	}
	return nil
}
