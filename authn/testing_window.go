// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestWindow is an in-memory Window which records every navigation so tests
// can assert on them.
type TestWindow struct {
	mu          sync.Mutex
	location    *url.URL
	navigations []string
	opened      []string
	replaced    []string
	closeCount  int
	opener      Peer
	parent      Parent
	document    *TestDocument
}

var _ Window = (*TestWindow)(nil)

// NewTestWindow creates a top-level TestWindow at location.
func NewTestWindow(t *testing.T, location string) *TestWindow {
	t.Helper()
	u, err := url.Parse(location)
	require.NoError(t, err)
	return &TestWindow{
		location: u,
		document: NewTestDocument(),
	}
}

// Location implements Window.
func (w *TestWindow) Location() *url.URL {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := *w.location
	return &u
}

// SetLocation changes the location without recording a navigation.
func (w *TestWindow) SetLocation(t *testing.T, location string) {
	t.Helper()
	u, err := url.Parse(location)
	require.NoError(t, err)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.location = u
}

// Navigate implements Window.
func (w *TestWindow) Navigate(u string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.navigations = append(w.navigations, u)
	return nil
}

// Open implements Window.
func (w *TestWindow) Open(u string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = append(w.opened, u)
	return nil
}

// Replace implements Window.
func (w *TestWindow) Replace(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.replaced = append(w.replaced, u)
	w.location = parsed
	return nil
}

// Close implements Window.
func (w *TestWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeCount++
	return nil
}

// Opener implements Window.
func (w *TestWindow) Opener() Peer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opener
}

// SetOpener makes the window a popup opened by p.
func (w *TestWindow) SetOpener(p Peer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opener = p
}

// Parent implements Window.
func (w *TestWindow) Parent() Parent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parent
}

// SetParent embeds the window in p.
func (w *TestWindow) SetParent(p Parent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.parent = p
}

// Document implements Window.
func (w *TestWindow) Document() Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.document == nil {
		return nil
	}
	return w.document
}

// TestDocument returns the window's document.
func (w *TestWindow) TestDocument() *TestDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.document
}

// Navigations returns the URLs passed to Navigate.
func (w *TestWindow) Navigations() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.navigations...)
}

// Opened returns the URLs passed to Open.
func (w *TestWindow) Opened() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.opened...)
}

// Replaced returns the URLs passed to Replace.
func (w *TestWindow) Replaced() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.replaced...)
}

// CloseCount is the number of times Close was called.
func (w *TestWindow) CloseCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeCount
}

// TestDocument is an in-memory Document.
type TestDocument struct {
	mu       sync.Mutex
	frames   map[string]*TestFrame
	noFrames bool
}

var _ Document = (*TestDocument)(nil)

// NewTestDocument creates an empty TestDocument.
func NewTestDocument() *TestDocument {
	return &TestDocument{frames: map[string]*TestFrame{}}
}

// DisableFrames makes AppendFrame fail with ErrFramesUnsupported.
func (d *TestDocument) DisableFrames() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.noFrames = true
}

// FrameByID implements Document.
func (d *TestDocument) FrameByID(id string) Frame {
	if f := d.TestFrame(id); f != nil {
		return f
	}
	return nil
}

// TestFrame returns the frame with the element id, or nil.
func (d *TestDocument) TestFrame(id string) *TestFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames[id]
}

// AppendFrame implements Document.
func (d *TestDocument) AppendFrame(id, src string, onLoad func(Frame)) (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.noFrames {
		return nil, ErrFramesUnsupported
	}
	f := &TestFrame{id: id, src: src, onLoad: onLoad, doc: d}
	d.frames[id] = f
	return f, nil
}

// AddFrame attaches an existing frame, as a parent page would when it
// embeds a window.
func (d *TestDocument) AddFrame(id string, content Window) *TestFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := &TestFrame{id: id, content: content, doc: d}
	d.frames[id] = f
	return f
}

// TestFrame is an in-memory Frame. Its body is unreadable until Load says
// otherwise.
type TestFrame struct {
	mu      sync.Mutex
	id      string
	src     string
	body    string
	bodyErr error
	removed bool
	content Window
	onLoad  func(Frame)
	doc     *TestDocument
}

var _ Frame = (*TestFrame)(nil)

// Src is the URL the frame was created with.
func (f *TestFrame) Src() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.src
}

// Load simulates the frame finishing a load: Body returns body and err
// afterwards, and the load handler runs.
func (f *TestFrame) Load(body string, err error) {
	f.mu.Lock()
	f.body, f.bodyErr = body, err
	onLoad := f.onLoad
	f.mu.Unlock()
	if onLoad != nil {
		onLoad(f)
	}
}

// Body implements Frame.
func (f *TestFrame) Body() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, f.bodyErr
}

// Remove implements Frame.
func (f *TestFrame) Remove() error {
	f.mu.Lock()
	f.removed = true
	f.mu.Unlock()
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	if f.doc.frames[f.id] == f {
		delete(f.doc.frames, f.id)
	}
	return nil
}

// Removed reports whether Remove was called.
func (f *TestFrame) Removed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed
}

// ContentWindow implements Frame.
func (f *TestFrame) ContentWindow() Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.content == nil {
		return nil
	}
	return f.content
}

// TestPeer is an in-memory Peer and Parent which records deliveries and
// optionally hands them on, typically to another provider's Accept.
type TestPeer struct {
	mu        sync.Mutex
	origin    string
	closed    bool
	delivered []StateChange
	document  *TestDocument
	onDeliver func(StateChange) error
}

var _ Parent = (*TestPeer)(nil)

// NewTestPeer creates a TestPeer at origin.
func NewTestPeer(origin string) *TestPeer {
	return &TestPeer{origin: origin, document: NewTestDocument()}
}

// Origin implements Peer.
func (p *TestPeer) Origin() string { return p.origin }

// Closed implements Peer.
func (p *TestPeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// SetClosed marks the peer as gone.
func (p *TestPeer) SetClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// OnDeliver sets a function called with every delivered change.
func (p *TestPeer) OnDeliver(fn func(StateChange) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDeliver = fn
}

// Deliver implements Peer.
func (p *TestPeer) Deliver(c StateChange) error {
	p.mu.Lock()
	p.delivered = append(p.delivered, c)
	fn := p.onDeliver
	p.mu.Unlock()
	if fn != nil {
		return fn(c)
	}
	return nil
}

// Delivered returns the changes delivered so far.
func (p *TestPeer) Delivered() []StateChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StateChange(nil), p.delivered...)
}

// Document implements Parent.
func (p *TestPeer) Document() Document { return p.document }

// TestDocument returns the peer's document.
func (p *TestPeer) TestDocument() *TestDocument { return p.document }
