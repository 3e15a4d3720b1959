// Package mpv owns the external mpv engine subprocess and its JSON IPC
// channel, and exposes a typed command facade on top of it.
package mpv

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultCommandTimeout = 5 * time.Second
	connectAttempts       = 50
	connectDelay          = 100 * time.Millisecond
	quitGrace             = 2 * time.Second
	eventBuffer           = 128
	maxLineBytes          = 1 << 20
)

var (
	errNotConnected = errors.New("not connected")

	// ErrStopped rejects commands that were still pending when the transport
	// shut down.
	ErrStopped = errors.New("engine transport stopped")
)

// Options configures a Transport.
type Options struct {
	// Binary is the engine executable. Empty means attach-only mode: the
	// transport connects to an already-listening SocketPath and never owns
	// a process.
	Binary string

	// SocketPath overrides the per-instance socket location. Empty generates
	// a unique path under the temp dir.
	SocketPath string

	// ExtraArgs are appended to the engine command line.
	ExtraArgs []string

	// CommandTimeout bounds every command round-trip. Zero means the default.
	CommandTimeout time.Duration
}

type outboundRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type inboundMessage struct {
	RequestID *int64          `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Reason    string          `json:"reason"`
}

type cmdResult struct {
	data json.RawMessage
	err  error
}

type pendingCall struct {
	command string
	ch      chan cmdResult
}

// Transport manages one engine subprocess and one IPC connection to it.
// A Transport is single-use: Start once, Stop once; a restart means a new
// Transport.
type Transport struct {
	opts Options

	mu      sync.Mutex
	wmu     sync.Mutex
	socket  string
	cmd     *exec.Cmd
	conn    net.Conn
	nextID  int64
	pending map[int64]*pendingCall
	props   map[string]any
	started bool
	ready   bool
	stopped bool
	exited  bool

	events   chan Event
	procDone chan struct{}
}

// NewTransport creates a transport with the given options. Nothing is spawned
// until Start.
func NewTransport(opts Options) *Transport {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	return &Transport{
		opts:     opts,
		pending:  make(map[int64]*pendingCall),
		props:    make(map[string]any),
		events:   make(chan Event, eventBuffer),
		procDone: make(chan struct{}),
	}
}

// Start spawns the engine process (unless attach-only), connects to its IPC
// socket with bounded retries, and registers the default property observers.
func (t *Transport) Start() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	socket := t.opts.SocketPath
	if socket == "" {
		socket = filepath.Join(os.TempDir(),
			fmt.Sprintf("chorale-mpv-%d-%s.sock", os.Getpid(), uuid.New().String()[:8]))
	}
	t.socket = socket
	t.mu.Unlock()

	if t.opts.Binary != "" {
		args := append([]string{
			"--idle=yes",
			"--no-video",
			"--no-terminal",
			"--really-quiet",
			fmt.Sprintf("--volume-max=%d", MaxVolume),
			"--input-ipc-server=" + socket,
		}, t.opts.ExtraArgs...)

		cmd := exec.Command(t.opts.Binary, args...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start engine process: %w", err)
		}
		t.mu.Lock()
		t.cmd = cmd
		t.mu.Unlock()

		go func() {
			err := cmd.Wait()
			close(t.procDone)
			t.handleDisconnect(&ProcessExitError{Err: err})
		}()

		log.Info().Str("binary", t.opts.Binary).Str("socket", socket).Msg("Engine process started")
	}

	conn, err := t.connect(socket)
	if err != nil {
		t.killProcess()
		return err
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		conn.Close()
		return ErrStopped
	}
	t.conn = conn
	t.ready = true
	t.mu.Unlock()

	go t.readLoop(conn)

	t.observeDefaults()
	log.Info().Str("socket", socket).Msg("Engine IPC connected")
	return nil
}

// connect dials the socket with a fixed retry budget. The socket file appears
// asynchronously after the process spawns.
func (t *Transport) connect(socket string) (net.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-t.procDone:
			return nil, &ConnectError{SocketPath: socket, Err: errors.New("engine exited before socket appeared")}
		case <-time.After(connectDelay):
		}
	}
	return nil, &ConnectError{SocketPath: socket, Err: lastErr}
}

func (t *Transport) observeDefaults() {
	for i, name := range DefaultObservedProperties {
		if _, err := t.Send("observe_property", i+1, name); err != nil {
			log.Debug().Err(err).Str("property", name).Msg("Property observation unavailable")
		}
	}
}

// Send issues one command and waits for its correlated response. Multiple
// commands may be in flight concurrently; correlation is strictly by request
// id, never by send order. A disconnected transport fails immediately.
func (t *Transport) Send(command ...any) (json.RawMessage, error) {
	name := commandName(command)

	t.mu.Lock()
	if t.conn == nil || t.stopped {
		socket := t.socket
		t.mu.Unlock()
		return nil, &ConnectError{SocketPath: socket, Err: errNotConnected}
	}
	t.nextID++
	id := t.nextID
	call := &pendingCall{command: name, ch: make(chan cmdResult, 1)}
	t.pending[id] = call
	conn := t.conn
	t.mu.Unlock()

	payload, err := json.Marshal(outboundRequest{Command: command, RequestID: id})
	if err != nil {
		t.discardPending(id)
		return nil, fmt.Errorf("failed to encode engine command: %w", err)
	}
	payload = append(payload, '\n')

	t.wmu.Lock()
	_, err = conn.Write(payload)
	t.wmu.Unlock()
	if err != nil {
		t.discardPending(id)
		return nil, fmt.Errorf("failed to write engine command: %w", err)
	}

	select {
	case res := <-call.ch:
		return res.data, res.err
	case <-time.After(t.opts.CommandTimeout):
		t.discardPending(id)
		return nil, &CommandTimeoutError{Command: name, Timeout: t.opts.CommandTimeout}
	}
}

// Events returns the engine event stream. The transport read loop never
// blocks on this channel; events overflowing the buffer are dropped.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Running reports whether the IPC connection is up.
func (t *Transport) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && !t.stopped
}

// SocketPath returns the socket in use, empty before Start.
func (t *Transport) SocketPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.socket
}

// PropertyState returns a copy of the last known value of every observed
// property.
func (t *Transport) PropertyState() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]any, len(t.props))
	for k, v := range t.props {
		out[k] = v
	}
	return out
}

// Stop shuts the engine down: best-effort quit raced against a short grace
// timer, then force kill, reject all pending commands, remove the socket
// file. Idempotent and safe to call on a transport that never started.
func (t *Transport) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	conn := t.conn
	cmd := t.cmd
	socket := t.socket
	ownsSocket := t.opts.SocketPath == ""
	t.mu.Unlock()

	if conn != nil {
		t.mu.Lock()
		t.nextID++
		id := t.nextID
		t.mu.Unlock()
		if payload, err := json.Marshal(outboundRequest{Command: []any{"quit"}, RequestID: id}); err == nil {
			t.wmu.Lock()
			_, _ = conn.Write(append(payload, '\n'))
			t.wmu.Unlock()
		}
		if cmd != nil {
			select {
			case <-t.procDone:
			case <-time.After(quitGrace):
			}
		}
	}

	t.killProcess()
	t.handleDisconnect(ErrStopped)

	if ownsSocket && socket != "" {
		_ = os.Remove(socket)
	}
	if conn != nil || cmd != nil {
		log.Info().Msg("Engine transport stopped")
	}
}

func (t *Transport) killProcess() {
	t.mu.Lock()
	cmd := t.cmd
	t.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (t *Transport) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		t.handleLine(line)
	}
	t.handleDisconnect(&ProcessExitError{Err: errors.New("engine connection closed")})
}

func (t *Transport) handleLine(line []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		log.Debug().Err(err).Msg("Dropping unparseable engine message")
		return
	}

	if msg.RequestID != nil {
		t.resolvePending(*msg.RequestID, msg)
		return
	}
	if msg.Event != "" {
		t.handleEvent(msg)
	}
}

func (t *Transport) resolvePending(id int64, msg inboundMessage) {
	t.mu.Lock()
	call, ok := t.pending[id]
	delete(t.pending, id)
	t.mu.Unlock()
	if !ok {
		// Late response after a timeout already discarded the entry.
		return
	}

	if msg.Error != "" && msg.Error != successError {
		call.ch <- cmdResult{err: &CommandRejectedError{Command: call.command, Reason: msg.Error}}
		return
	}
	call.ch <- cmdResult{data: msg.Data}
}

func (t *Transport) handleEvent(msg inboundMessage) {
	var ev Event
	switch msg.Event {
	case "property-change":
		var value any
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &value); err != nil {
				log.Debug().Err(err).Str("property", msg.Name).Msg("Dropping unparseable property value")
				return
			}
		}
		t.mu.Lock()
		t.props[msg.Name] = value
		t.mu.Unlock()
		ev = PropertyChange{Name: msg.Name, Value: value}
	case "file-loaded":
		ev = FileLoaded{}
	case "end-file":
		ev = EndFile{Reason: msg.Reason}
	default:
		// Other engine events are not interesting here.
		return
	}
	t.emit(ev)
}

func (t *Transport) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		log.Warn().Msg("Engine event buffer full, dropping event")
	}
}

func (t *Transport) discardPending(id int64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// handleDisconnect tears the connection state down once, rejects every
// pending command and, outside of an orderly stop, surfaces an Exited event.
func (t *Transport) handleDisconnect(cause error) {
	t.mu.Lock()
	if t.exited {
		t.mu.Unlock()
		return
	}
	t.exited = true
	stopping := t.stopped
	ready := t.ready
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	calls := t.pending
	t.pending = make(map[int64]*pendingCall)
	t.mu.Unlock()

	for _, call := range calls {
		call.ch <- cmdResult{err: cause}
	}

	if !stopping && ready {
		log.Error().Err(cause).Msg("Engine connection lost")
		t.emit(Exited{Err: cause})
	}
}

func commandName(command []any) string {
	if len(command) > 0 {
		if s, ok := command[0].(string); ok {
			return s
		}
	}
	return "?"
}
