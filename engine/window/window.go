// Package window provides the presentation surface and resize events the
// renderer consumes. It wraps platform windowing behind a small interface;
// the GLFW backend is the only implementation.
package window

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Kalix-Works/helix-go/common"
)

// Window is a presentation surface with resize notification. The renderer
// does not poll the window itself; the application drives Poll from the
// thread that owns the render loop.
type Window interface {
	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for
	// creating the device's surface. The descriptor is platform-appropriate
	// (Windows HWND, X11 Xlib, Wayland, macOS Metal).
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil before the window exists
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Extent returns the current framebuffer size in pixels. On high-DPI
	// displays this differs from the window size; the renderer always
	// works in framebuffer pixels.
	//
	// Returns:
	//   - common.Extent: the framebuffer extent
	Extent() common.Extent

	// SetResizeCallback sets the function called when the framebuffer
	// size changes.
	//
	// Parameters:
	//   - callback: function receiving the new extent
	SetResizeCallback(callback func(extent common.Extent))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the platform key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// Poll pumps pending window events without blocking.
	//
	// Returns:
	//   - bool: false once the window is closing
	Poll() bool

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: an error if the window was never created
	Close() error
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title  string
	extent common.Extent

	// internalWindow holds the platform-specific window state.
	internalWindow any

	onResize  func(extent common.Extent)
	onKeyDown func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: an error if platform window creation fails
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:  "helix",
		extent: common.Extent{Width: 1280, Height: 720},
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) Extent() common.Extent {
	return w.extent
}

func (w *engineWindow) SetResizeCallback(callback func(extent common.Extent)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) Poll() bool {
	return platformProcessMessages(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}
