package scraper

import (
	"fmt"
)

// LoadConvergenceWarning reports that the loader stopped before the reveal
// control disappeared. The page state at that point is treated as final.
type LoadConvergenceWarning struct {
	Items   int
	Reveals int
	Err     error
}

func (w *LoadConvergenceWarning) Error() string {
	return fmt.Sprintf("load did not converge after %d reveals (%d items): %v", w.Reveals, w.Items, w.Err)
}

func (w *LoadConvergenceWarning) Unwrap() error { return w.Err }

type UnrecoverableProviderError struct {
	Op  string
	Err error
}

func (e *UnrecoverableProviderError) Error() string {
	return fmt.Sprintf("page provider failed during %s: %v", e.Op, e.Err)
}

func (e *UnrecoverableProviderError) Unwrap() error { return e.Err }
