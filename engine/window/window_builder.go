package window

import "github.com/Kalix-Works/helix-go/common"

// WindowBuilderOption is a functional option for configuring a Window.
// Use the With* functions to create options.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithExtent sets the initial window size in pixels.
//
// Parameters:
//   - extent: the requested client size; zero extents are ignored
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithExtent(extent common.Extent) WindowBuilderOption {
	return func(w *engineWindow) {
		if !extent.IsZero() {
			w.extent = extent
		}
	}
}
