package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type LoaderOptions struct {
	ItemSelector    string
	ControlSelector string
	Timeout         time.Duration
	PollInterval    time.Duration
}

func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ItemSelector:    ".card-body",
		ControlSelector: ".ecomerce-items-scroll-more",
		Timeout:         DefaultTimeout,
		PollInterval:    DefaultPollInterval,
	}
}

type LoadResult struct {
	Items     int
	Reveals   int
	Converged bool
	Warning   *LoadConvergenceWarning
}

// Loader reveals every item behind a "load more" control by clicking it until
// the control disappears or the item count stops growing.
type Loader struct {
	opts   LoaderOptions
	logger *slog.Logger
}

func NewLoader(opts LoaderOptions, logger *slog.Logger) *Loader {
	defaults := DefaultLoaderOptions()
	if opts.ItemSelector == "" {
		opts.ItemSelector = defaults.ItemSelector
	}
	if opts.ControlSelector == "" {
		opts.ControlSelector = defaults.ControlSelector
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{
		opts:   opts,
		logger: logger.With("component", "loader"),
	}
}

// Load runs the reveal loop on an already navigated page.
//
// Timeouts and provider errors while waiting end the loop with a warning on
// the result and a nil error. Only failures wrapping ErrProviderUnusable and
// context cancellation are returned as errors.
func (l *Loader) Load(ctx context.Context, page PageProvider) (*LoadResult, error) {
	res := &LoadResult{}

	stop := func(op string, err error) (*LoadResult, error) {
		if errors.Is(err, ErrProviderUnusable) {
			l.logger.Error("page provider unusable", "op", op, "error", err)
			return res, &UnrecoverableProviderError{Op: op, Err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}

		res.Warning = &LoadConvergenceWarning{Items: res.Items, Reveals: res.Reveals, Err: err}
		l.logger.Warn("load did not converge, keeping current page state",
			"op", op,
			"items", res.Items,
			"reveals", res.Reveals,
			"error", err)
		return res, nil
	}

	for {
		err := l.waitForItems(ctx, page, res, func(n int) bool { return n > 0 })
		if err != nil {
			return stop("wait_items", err)
		}

		visible, err := l.controlVisible(page)
		if err != nil {
			return stop("find_control", err)
		}
		if !visible {
			res.Converged = true
			l.logger.Info("all items loaded", "items", res.Items, "reveals", res.Reveals)
			return res, nil
		}

		before := res.Items
		if err := page.InvokeControl(l.opts.ControlSelector); err != nil {
			return stop("invoke_control", err)
		}
		res.Reveals++
		l.logger.Debug("reveal control invoked", "reveal", res.Reveals, "items", before)

		err = l.waitForItems(ctx, page, res, func(n int) bool { return n > before })
		if err != nil {
			return stop("wait_growth", err)
		}
	}
}

func (l *Loader) waitForItems(ctx context.Context, page PageProvider, res *LoadResult, done func(int) bool) error {
	return WaitForCondition(ctx, l.opts.Timeout, l.opts.PollInterval, func() (bool, error) {
		items, err := page.FindAll(l.opts.ItemSelector)
		if err != nil {
			return false, err
		}
		res.Items = len(items)
		return done(res.Items), nil
	})
}

// controlVisible reports whether the first element matching the control
// selector is displayed. InvokeControl clicks that same first match.
func (l *Loader) controlVisible(page PageProvider) (bool, error) {
	controls, err := page.FindAll(l.opts.ControlSelector)
	if err != nil {
		return false, err
	}
	if len(controls) == 0 {
		return false, nil
	}

	return controls[0].Visible()
}
