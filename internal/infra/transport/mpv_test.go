package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satvikx/beats/internal/app/player"
)

// newTestMpv wires an Mpv instance to an in-memory pipe; the returned
// conn plays the mpv side of the protocol.
func newTestMpv(t *testing.T) (*Mpv, net.Conn) {
	t.Helper()

	client, server := net.Pipe()
	m := &Mpv{
		conn:    client,
		pending: make(map[int64]chan ipcResponse),
		events:  make(chan player.TransportEvent, 64),
		done:    make(chan struct{}),
	}
	go m.readLoop()
	t.Cleanup(func() {
		close(m.done)
		client.Close()
		server.Close()
	})
	return m, server
}

func serveOneCommand(t *testing.T, server net.Conn, respond func(req ipcRequest) string) {
	t.Helper()

	go func() {
		line, err := bufio.NewReader(server).ReadBytes('\n')
		if err != nil {
			return
		}
		var req ipcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			return
		}
		fmt.Fprintln(server, respond(req))
	}()
}

func TestCommandRoundTrip(t *testing.T) {
	m, server := newTestMpv(t)

	serveOneCommand(t, server, func(req ipcRequest) string {
		assert.Equal(t, []any{"get_property", "volume"}, req.Command)
		return fmt.Sprintf(`{"request_id": %d, "error": "success", "data": 100}`, req.RequestID)
	})

	data, err := m.command("get_property", "volume")
	require.NoError(t, err)
	assert.JSONEq(t, "100", string(data))
}

func TestCommandError(t *testing.T) {
	m, server := newTestMpv(t)

	serveOneCommand(t, server, func(req ipcRequest) string {
		return fmt.Sprintf(`{"request_id": %d, "error": "invalid parameter"}`, req.RequestID)
	})

	_, err := m.command("loadfile")
	assert.ErrorContains(t, err, "invalid parameter")
}

func expectEvent(t *testing.T, m *Mpv, want player.TransportEventType) player.TransportEvent {
	t.Helper()

	select {
	case ev := <-m.events:
		assert.Equal(t, want, ev.Type)
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %v", want)
		return player.TransportEvent{}
	}
}

func TestPropertyChangeTimePos(t *testing.T) {
	m, server := newTestMpv(t)

	fmt.Fprintln(server, `{"event": "property-change", "id": 1, "name": "time-pos", "data": 12.5}`)

	ev := expectEvent(t, m, player.TransportTimeUpdate)
	assert.Equal(t, 12500*time.Millisecond, ev.Position)
	assert.Equal(t, 12500*time.Millisecond, m.Position())
}

func TestPropertyChangeDuration(t *testing.T) {
	m, server := newTestMpv(t)

	fmt.Fprintln(server, `{"event": "property-change", "id": 2, "name": "duration", "data": 200}`)

	ev := expectEvent(t, m, player.TransportMetadata)
	assert.Equal(t, 200*time.Second, ev.Duration)
	assert.Equal(t, 200*time.Second, m.Duration())
}

func TestPropertyChangePause(t *testing.T) {
	m, server := newTestMpv(t)

	fmt.Fprintln(server, `{"event": "property-change", "id": 3, "name": "pause", "data": false}`)
	expectEvent(t, m, player.TransportPlaying)

	fmt.Fprintln(server, `{"event": "property-change", "id": 3, "name": "pause", "data": true}`)
	expectEvent(t, m, player.TransportPaused)
}

func TestEndFileOnlyOnEOF(t *testing.T) {
	m, server := newTestMpv(t)

	// A manual stop must not advance the queue.
	fmt.Fprintln(server, `{"event": "end-file", "reason": "stop"}`)
	fmt.Fprintln(server, `{"event": "end-file", "reason": "eof"}`)

	expectEvent(t, m, player.TransportEnded)
	select {
	case ev := <-m.events:
		t.Fatalf("unexpected extra event %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNullPropertyIgnored(t *testing.T) {
	m, server := newTestMpv(t)

	// mpv reports null time-pos while idle.
	fmt.Fprintln(server, `{"event": "property-change", "id": 1, "name": "time-pos", "data": null}`)
	fmt.Fprintln(server, `{"event": "property-change", "id": 1, "name": "time-pos", "data": 3.0}`)

	ev := expectEvent(t, m, player.TransportTimeUpdate)
	assert.Equal(t, 3*time.Second, ev.Position)
}
