// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import "net/url"

// ChildFrameID is the element id of the hidden refresh frame.
const ChildFrameID = "byu-oauth-implicit-grant-refresh-iframe"

// Window is the browsing context hosting a Provider. Implementations must be
// comparable, since a provider finds out whether it runs inside the refresh
// frame by comparing the frame's content window against its own.
type Window interface {
	// Location is the current URL.
	Location() *url.URL

	// Navigate moves this context to u, ending the current page.
	Navigate(u string) error

	// Open loads u in a new browsing context (a popup).
	Open(u string) error

	// Replace rewrites the current URL without loading anything.
	Replace(u string) error

	// Close closes this context.
	Close() error

	// Opener is the context that opened this one, or nil.
	Opener() Peer

	// Parent is the embedding context, or nil for a top-level context.
	Parent() Parent

	// Document is this context's document.
	Document() Document
}

// Peer is another browsing context a state change can be delivered to.
type Peer interface {
	// Origin is the peer's scheme://host.
	Origin() string

	// Closed reports whether the peer is gone.
	Closed() bool

	// Deliver hands a state change to the peer. The peer validates the
	// change's origin before acting on it (see Provider.Accept).
	Deliver(c StateChange) error
}

// Parent is an embedding browsing context.
type Parent interface {
	Peer
	Document() Document
}

// Document is the part of a DOM document the provider uses to manage the
// refresh frame. A document that cannot host frames returns
// ErrFramesUnsupported from AppendFrame.
type Document interface {
	// FrameByID returns the frame with the element id, or nil.
	FrameByID(id string) Frame

	// AppendFrame adds a hidden frame loading src. onLoad runs each time the
	// frame finishes loading.
	AppendFrame(id, src string, onLoad func(Frame)) (Frame, error)
}

// Frame is an embedded browsing context.
type Frame interface {
	// Body reads the frame's document body. It fails while the frame shows a
	// cross-origin page.
	Body() (string, error)

	// Remove detaches the frame from its document.
	Remove() error

	// ContentWindow is the frame's own window, or nil if it is not yet
	// loaded.
	ContentWindow() Window
}
