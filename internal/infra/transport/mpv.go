// Package transport implements the media transport on top of mpv,
// driven over its JSON IPC socket.
package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/satvikx/beats/internal/app/player"
)

const commandTimeout = 5 * time.Second

// Config represents mpv transport configuration.
type Config struct {
	MpvPath    string // mpv binary, default "mpv"
	SocketPath string // IPC socket, default under the temp dir
}

// Mpv runs an mpv process in idle mode and translates between its IPC
// protocol and the player's Transport interface.
type Mpv struct {
	cmd    *exec.Cmd
	conn   net.Conn
	socket string

	reqMu     sync.Mutex
	requestID int64
	pending   map[int64]chan ipcResponse

	stateMu  sync.Mutex
	position time.Duration
	duration time.Duration

	events chan player.TransportEvent
	done   chan struct{}
	closed sync.Once
}

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type ipcResponse struct {
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Reason    string          `json:"reason"`
}

// New starts mpv and connects to its IPC socket.
func New(cfg Config) (*Mpv, error) {
	if cfg.MpvPath == "" {
		cfg.MpvPath = "mpv"
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(os.TempDir(), fmt.Sprintf("beats-mpv-%d.sock", os.Getpid()))
	}

	cmd := exec.Command(cfg.MpvPath,
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--volume=100",
		"--input-ipc-server="+cfg.SocketPath,
	)
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start mpv")
	}

	conn, err := dialWithRetry(cfg.SocketPath, 5*time.Second)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, errors.Wrap(err, "failed to connect to mpv IPC socket")
	}

	m := &Mpv{
		cmd:     cmd,
		conn:    conn,
		socket:  cfg.SocketPath,
		pending: make(map[int64]chan ipcResponse),
		events:  make(chan player.TransportEvent, 64),
		done:    make(chan struct{}),
	}

	go m.readLoop()

	for i, prop := range []string{"time-pos", "duration", "pause", "paused-for-cache"} {
		if _, err := m.command("observe_property", int64(i+1), prop); err != nil {
			m.Close()
			return nil, errors.Wrapf(err, "failed to observe %s", prop)
		}
	}

	zlog.Info().Str("socket", cfg.SocketPath).Msg("transport: mpv started")
	return m, nil
}

func dialWithRetry(socket string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// SetSource loads a URL paused; Play starts it.
func (m *Mpv) SetSource(url string) error {
	if _, err := m.command("set_property", "pause", true); err != nil {
		return err
	}
	_, err := m.command("loadfile", url, "replace")
	return err
}

// ClearSource stops playback and unloads the current file.
func (m *Mpv) ClearSource() {
	if _, err := m.command("stop"); err != nil {
		zlog.Debug().Err(err).Msg("transport: stop failed")
	}
	m.stateMu.Lock()
	m.position = 0
	m.duration = 0
	m.stateMu.Unlock()
}

func (m *Mpv) Play() error {
	_, err := m.command("set_property", "pause", false)
	return err
}

func (m *Mpv) Pause() error {
	_, err := m.command("set_property", "pause", true)
	return err
}

func (m *Mpv) Seek(position time.Duration) error {
	_, err := m.command("seek", position.Seconds(), "absolute")
	return err
}

// SetVolume maps 0..1 onto mpv's 0..100 scale.
func (m *Mpv) SetVolume(volume float64) error {
	_, err := m.command("set_property", "volume", volume*100)
	return err
}

func (m *Mpv) Position() time.Duration {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.position
}

func (m *Mpv) Duration() time.Duration {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.duration
}

func (m *Mpv) Events() <-chan player.TransportEvent {
	return m.events
}

// Close quits mpv and tears down the socket.
func (m *Mpv) Close() error {
	var err error
	m.closed.Do(func() {
		_, _ = m.command("quit")
		close(m.done)
		m.conn.Close()
		err = m.cmd.Wait()
		_ = os.Remove(m.socket)
	})
	return err
}

// command sends one IPC command and waits for its reply.
func (m *Mpv) command(args ...any) (json.RawMessage, error) {
	m.reqMu.Lock()
	m.requestID++
	id := m.requestID
	ch := make(chan ipcResponse, 1)
	m.pending[id] = ch

	payload, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		delete(m.pending, id)
		m.reqMu.Unlock()
		return nil, errors.Wrap(err, "failed to marshal command")
	}
	_, err = m.conn.Write(append(payload, '\n'))
	m.reqMu.Unlock()
	if err != nil {
		m.dropPending(id)
		return nil, errors.Wrap(err, "failed to write command")
	}

	select {
	case resp := <-ch:
		if resp.Error != "" && resp.Error != "success" {
			return nil, errors.Newf("mpv: %s", resp.Error)
		}
		return resp.Data, nil
	case <-time.After(commandTimeout):
		m.dropPending(id)
		return nil, errors.New("mpv: command timed out")
	case <-m.done:
		return nil, errors.New("mpv: transport closed")
	}
}

func (m *Mpv) dropPending(id int64) {
	m.reqMu.Lock()
	delete(m.pending, id)
	m.reqMu.Unlock()
}

// readLoop parses IPC lines: replies are routed to their waiting
// command, everything else becomes transport events.
func (m *Mpv) readLoop() {
	// The read loop is the only sender on the event channel, so it
	// owns closing it.
	defer close(m.events)

	scanner := bufio.NewScanner(m.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var resp ipcResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			zlog.Debug().Err(err).Msg("transport: unparseable IPC line")
			continue
		}

		if resp.RequestID != 0 {
			m.reqMu.Lock()
			ch, ok := m.pending[resp.RequestID]
			if ok {
				delete(m.pending, resp.RequestID)
			}
			m.reqMu.Unlock()
			if ok {
				ch <- resp
			}
			continue
		}

		if resp.Event != "" {
			m.handleIPCEvent(resp)
		}
	}
}

func (m *Mpv) handleIPCEvent(resp ipcResponse) {
	switch resp.Event {
	case "property-change":
		m.handlePropertyChange(resp)

	case "end-file":
		// Stops and replacements also emit end-file; only a natural
		// end advances the queue.
		if resp.Reason == "eof" {
			m.emit(player.TransportEvent{Type: player.TransportEnded})
		}

	case "seek":
		m.emit(player.TransportEvent{Type: player.TransportWaiting})

	case "playback-restart":
		m.emit(player.TransportEvent{
			Type:     player.TransportTimeUpdate,
			Position: m.Position(),
			Duration: m.Duration(),
		})
	}
}

func (m *Mpv) handlePropertyChange(resp ipcResponse) {
	switch resp.Name {
	case "time-pos":
		var secs *float64
		if err := json.Unmarshal(resp.Data, &secs); err != nil || secs == nil {
			return
		}
		m.stateMu.Lock()
		m.position = time.Duration(*secs * float64(time.Second))
		pos, dur := m.position, m.duration
		m.stateMu.Unlock()
		m.emit(player.TransportEvent{Type: player.TransportTimeUpdate, Position: pos, Duration: dur})

	case "duration":
		var secs *float64
		if err := json.Unmarshal(resp.Data, &secs); err != nil || secs == nil {
			return
		}
		m.stateMu.Lock()
		m.duration = time.Duration(*secs * float64(time.Second))
		dur := m.duration
		m.stateMu.Unlock()
		m.emit(player.TransportEvent{Type: player.TransportMetadata, Duration: dur})

	case "pause":
		var paused bool
		if err := json.Unmarshal(resp.Data, &paused); err != nil {
			return
		}
		if paused {
			m.emit(player.TransportEvent{Type: player.TransportPaused})
		} else {
			m.emit(player.TransportEvent{Type: player.TransportPlaying})
		}

	case "paused-for-cache":
		var waiting bool
		if err := json.Unmarshal(resp.Data, &waiting); err != nil {
			return
		}
		if waiting {
			m.emit(player.TransportEvent{Type: player.TransportWaiting})
		}
	}
}

// emit never blocks; the controller drains quickly and stale position
// updates are worthless anyway.
func (m *Mpv) emit(ev player.TransportEvent) {
	select {
	case <-m.done:
	case m.events <- ev:
	default:
	}
}
