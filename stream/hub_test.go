package stream

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubConnectDisconnect(t *testing.T) {
	hub := NewHub(log.New(io.Discard))

	id1 := hub.Connect(func(id ID, data []byte) {})
	id2 := hub.Connect(func(id ID, data []byte) {})
	assert.Equal(t, 2, hub.Viewers())

	require.NoError(t, hub.Disconnect(id1))
	assert.Equal(t, 1, hub.Viewers())

	require.NoError(t, hub.Disconnect(id2))
	assert.Equal(t, 0, hub.Viewers())
}

func TestHubReconnect(t *testing.T) {
	hub := NewHub(log.New(io.Discard))

	id := hub.Connect(func(id ID, data []byte) {})
	err := hub.Reconnect(id, func(id ID, data []byte) {})
	assert.Error(t, err)

	require.NoError(t, hub.Disconnect(id))
	err = hub.Reconnect(id, func(id ID, data []byte) {})
	assert.NoError(t, err)
	assert.Equal(t, 1, hub.Viewers())
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(log.New(io.Discard))

	var got []Frame
	hub.Connect(func(id ID, data []byte) {
		var f Frame
		require.NoError(t, json.Unmarshal(data, &f))
		got = append(got, f)
	})

	dropped := hub.Connect(func(id ID, data []byte) {
		t.Error("disconnected viewer should not receive frames")
	})
	require.NoError(t, hub.Disconnect(dropped))

	err := hub.Broadcast("tick", []byte(`{"tick":3}`), nil)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "tick", got[0].Type)
	assert.JSONEq(t, `{"tick":3}`, string(got[0].Payload))
}

func TestHubBroadcastFilter(t *testing.T) {
	hub := NewHub(log.New(io.Discard))

	writes := map[ID]int{}
	id1 := hub.Connect(func(id ID, data []byte) { writes[id]++ })
	id2 := hub.Connect(func(id ID, data []byte) { writes[id]++ })

	err := hub.Broadcast("tick", []byte("{}"), func(id ID) bool { return id == id2 })
	require.NoError(t, err)

	assert.Equal(t, 0, writes[id1])
	assert.Equal(t, 1, writes[id2])
}

func TestHubSend(t *testing.T) {
	hub := NewHub(log.New(io.Discard))

	didWrite := false
	id := hub.Connect(func(id ID, data []byte) { didWrite = true })

	require.NoError(t, hub.Send(id, "tick", []byte("{}")))
	assert.True(t, didWrite)

	err := hub.Send(id+1, "tick", []byte("{}"))
	assert.Error(t, err)
}

func TestHubViewerMessage(t *testing.T) {
	hub := NewHub(log.New(io.Discard))
	id := hub.Connect(func(id ID, data []byte) {})

	var gotID ID
	var gotPayload []byte
	hub.RegisterHandler("pause", func(id ID, data []byte) error {
		gotID = id
		gotPayload = data
		return nil
	})

	err := hub.ViewerMessage(id, []byte(`{"type":"pause","payload":{"on":true}}`))
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.JSONEq(t, `{"on":true}`, string(gotPayload))

	// Unknown frame types are dropped, not errors.
	err = hub.ViewerMessage(id, []byte(`{"type":"bogus"}`))
	assert.NoError(t, err)

	err = hub.ViewerMessage(id, []byte(`not json`))
	assert.Error(t, err)
}

func TestHubHooks(t *testing.T) {
	hub := NewHub(log.New(io.Discard))

	var connected, disconnected []ID
	hub.RegisterConnectHook(func(id ID, v *Viewer) {
		assert.Equal(t, id, v.ID())
		connected = append(connected, id)
	})
	hub.RegisterDisconnectHook(func(id ID) {
		disconnected = append(disconnected, id)
	})

	id := hub.Connect(func(id ID, data []byte) {})
	require.NoError(t, hub.Disconnect(id))

	assert.Equal(t, []ID{id}, connected)
	assert.Equal(t, []ID{id}, disconnected)
}
