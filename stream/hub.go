// Package stream fans simulation frames out to connected viewers. The
// hub does not know about websockets; transports register a write
// callback and pump inbound bytes through ViewerMessage.
package stream

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tifye/kousaten/assert"
)

const (
	FrameSizeLimit = 65_535
	FrameTypeLen   = 16
)

type ID = uint32

// Frame is the wire envelope every viewer message travels in.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitzero,omitempty"`
}

type Hub struct {
	logger *log.Logger

	handlers        map[frameType]func(id ID, data []byte) error
	disconnectHooks []func(id ID)
	connectHooks    []func(id ID, v *Viewer)
	handlersMu      sync.RWMutex

	viewers   map[ID]*Viewer
	viewersMu sync.RWMutex
}

func NewHub(logger *log.Logger) *Hub {
	assert.AssertNotNil(logger)
	return &Hub{
		logger:          logger,
		viewers:         map[ID]*Viewer{},
		handlers:        map[frameType]func(id ID, data []byte) error{},
		connectHooks:    []func(id ID, v *Viewer){},
		disconnectHooks: []func(id ID){},
	}
}

func (h *Hub) Connect(write func(id ID, data []byte)) ID {
	id := rand.Uint32()
	h.connect(id, write)
	return id
}

// Reconnect reattaches a viewer under an id it held before, typically
// after a websocket drop. Reconnecting an id that is still connected
// is an error.
func (h *Hub) Reconnect(id ID, write func(id ID, data []byte)) error {
	h.viewersMu.RLock()
	_, exists := h.viewers[id]
	h.viewersMu.RUnlock()

	if exists {
		return fmt.Errorf("viewer already connected")
	}

	h.connect(id, write)
	return nil
}

func (h *Hub) connect(id ID, write func(id ID, data []byte)) {
	viewer := &Viewer{
		id:     id,
		writer: write,
	}

	h.viewersMu.Lock()
	_, exists := h.viewers[id]
	h.viewers[id] = viewer
	h.viewersMu.Unlock()
	assert.Assert(!exists, fmt.Sprintf("viewer with id %d already existed", id))

	h.handlersMu.RLock()
	hooks := make([]func(ID, *Viewer), len(h.connectHooks))
	copy(hooks, h.connectHooks)
	h.handlersMu.RUnlock()

	for _, hook := range hooks {
		assert.AssertNotNil(hook)
		hook(id, viewer)
	}
}

func (h *Hub) Disconnect(id ID) error {
	h.viewersMu.Lock()
	delete(h.viewers, id)
	h.viewersMu.Unlock()

	h.handlersMu.RLock()
	hooks := make([]func(ID), len(h.disconnectHooks))
	copy(hooks, h.disconnectHooks)
	h.handlersMu.RUnlock()

	for _, hook := range hooks {
		assert.AssertNotNil(hook)
		hook(id)
	}

	return nil
}

// Viewers reports how many viewers are currently attached.
func (h *Hub) Viewers() int {
	h.viewersMu.RLock()
	defer h.viewersMu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) RegisterHandler(typ string, handler func(id ID, data []byte) error) {
	assert.AssertNotNil(handler)
	assert.Assert(len(typ) <= FrameTypeLen, "frame type too long")

	h.handlersMu.Lock()
	h.handlers[frameTypeOf(typ)] = handler
	h.handlersMu.Unlock()
}

func (h *Hub) RegisterDisconnectHook(hook func(id ID)) {
	assert.AssertNotNil(hook)

	h.handlersMu.Lock()
	h.disconnectHooks = append(h.disconnectHooks, hook)
	h.handlersMu.Unlock()
}

func (h *Hub) RegisterConnectHook(hook func(id ID, v *Viewer)) {
	assert.AssertNotNil(hook)

	h.handlersMu.Lock()
	h.connectHooks = append(h.connectHooks, hook)
	h.handlersMu.Unlock()
}

type frameType [FrameTypeLen]byte

func frameTypeOf(typ string) frameType {
	ft := frameType{}
	copy(ft[:], typ)
	return ft
}

// ViewerMessage routes one inbound frame from a viewer to its
// registered handler. Unknown frame types are logged and dropped, not
// errors; a misbehaving viewer should not tear the stream down.
func (h *Hub) ViewerMessage(id ID, data []byte) error {
	assert.AssertNotNil(data)
	assert.Assert(len(data) < FrameSizeLimit, fmt.Sprintf("frame too big: %d", len(data)))

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("unmarshal frame: %s", err)
	}

	if len(frame.Type) > FrameTypeLen {
		return fmt.Errorf("frame type too long, expect length of %d but got %d", FrameTypeLen, len(frame.Type))
	}

	h.logger.Debug("viewer frame", "id", id, "type", frame.Type)

	h.handlersMu.RLock()
	handler, ok := h.handlers[frameTypeOf(frame.Type)]
	h.handlersMu.RUnlock()
	if !ok {
		h.logger.Warnf("could not find handler for frame type %s", frame.Type)
		return nil
	}

	assert.AssertNotNil(handler)
	if err := handler(id, frame.Payload); err != nil {
		return fmt.Errorf("handler[%s]: %s", frame.Type, err)
	}

	return nil
}

// Send delivers one frame to a single viewer.
func (h *Hub) Send(id ID, typ string, payload []byte) error {
	assert.AssertNotEmpty(typ)
	assert.Assert(len(payload) < FrameSizeLimit, fmt.Sprintf("frame too big: %d", len(payload)))
	assert.Assert(len(typ) <= FrameTypeLen, "frame type too long")

	data, err := json.Marshal(Frame{Type: typ, Payload: payload})
	if err != nil {
		return fmt.Errorf("json marshal: %s", err)
	}

	h.viewersMu.RLock()
	viewer, ok := h.viewers[id]
	h.viewersMu.RUnlock()

	if !ok {
		return fmt.Errorf("no viewer found with id %d", id)
	}

	if viewer.writer != nil {
		viewer.writer(id, data)
	}

	return nil
}

// Broadcast delivers one frame to every attached viewer passing the
// filter. A nil filter means everyone.
func (h *Hub) Broadcast(typ string, payload []byte, filter func(id ID) bool) error {
	assert.AssertNotEmpty(typ)
	assert.Assert(len(payload) < FrameSizeLimit, fmt.Sprintf("frame too big: %d", len(payload)))
	assert.Assert(len(typ) <= FrameTypeLen, "frame type too long")

	data, err := json.Marshal(Frame{Type: typ, Payload: payload})
	if err != nil {
		return fmt.Errorf("json marshal: %s", err)
	}

	if filter == nil {
		filter = func(id ID) bool { return true }
	}

	h.viewersMu.RLock()
	for _, viewer := range h.viewers {
		if viewer.writer == nil {
			continue
		}

		if filter(viewer.id) {
			viewer.writer(viewer.id, data)
		}
	}
	h.viewersMu.RUnlock()

	return nil
}

type Viewer struct {
	id     ID
	writer func(id ID, data []byte)
}

func (v *Viewer) ID() ID {
	return v.id
}
