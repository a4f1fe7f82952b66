package media

import (
	"context"
	"time"
)

// Driver is the slice of a scripted browser the gallery flow needs. Every
// method honours the deadline of the context it is given.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// WaitClickable blocks until the element matching css is visible.
	WaitClickable(ctx context.Context, css string) error
	Click(ctx context.Context, css string) error
	// WaitPresent blocks until the element matching css is in the DOM.
	WaitPresent(ctx context.Context, css string) error
	// HTML returns the outer HTML of the whole rendered document.
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// DriverFactory starts a fresh browser session presenting userAgent.
type DriverFactory func(ctx context.Context, userAgent string) (Driver, error)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
