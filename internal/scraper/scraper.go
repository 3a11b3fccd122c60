package scraper

import (
	"errors"
)

var (
	ErrWaitTimeout = errors.New("timed out waiting for condition")
	// ErrProviderUnusable marks provider failures that no further action can
	// recover from, such as a closed page or a crashed browser.
	ErrProviderUnusable = errors.New("page provider unusable")
)

// Element is a node located on the live page.
type Element interface {
	Visible() (bool, error)
}

// PageProvider drives one live, scriptable page.
type PageProvider interface {
	Navigate(url string) error
	FindAll(selector string) ([]Element, error)
	// InvokeControl activates the first element matching selector.
	InvokeControl(selector string) error
	// Snapshot returns the serialized document as currently rendered.
	Snapshot() (string, error)
	Close() error
}

// PageSource opens fresh pages. The caller closes each page it opens.
type PageSource interface {
	OpenPage() (PageProvider, error)
}
