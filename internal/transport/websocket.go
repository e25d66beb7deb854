package transport

import (
	"net/http"
	"sync"

	applog "audiotap/internal/log"

	"github.com/gorilla/websocket"
)

// WebSocketTransport broadcasts tap payloads to connected WebSocket clients.
//
// Thread Safety:
// - Mutex-protected client map
// - Buffered broadcast channel decouples senders from slow clients
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport creates the transport and starts its HTTP server.
// Clients connect to ws://<addr>/spectrum.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for testing
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
	}

	wst.start()
	return wst
}

func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/spectrum", wst.handleWebSocket)

	wst.server = &http.Server{
		Addr:    wst.addr,
		Handler: mux,
	}

	go func() {
		applog.Infof("Transport: WebSocket server listening on %s", wst.addr)
		if err := wst.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("Transport: WebSocket server error: %v", err)
		}
	}()

	go wst.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections, registers the client, and
// removes it again when its read loop errors (disconnect).
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("Transport: WebSocket upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("Transport: WebSocket client connected, total: %d", total)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.clientsMu.Lock()
				delete(wst.clients, conn)
				wst.clientsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				if err := client.WriteJSON(data); err != nil {
					applog.Warnf("Transport: dropping WebSocket client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues data for broadcast. When the queue is full, or the transport
// is closed, the payload is dropped rather than blocking the tap that
// produced it.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		// Closed, drop the frame.
	case wst.broadcast <- data:
	default:
		// Channel full, drop the frame.
	}
	return nil
}

// Close shuts down the broadcast goroutine, the server, and all client
// connections. Safe to call more than once.
func (wst *WebSocketTransport) Close() error {
	applog.Infof("Transport: closing WebSocket server")

	wst.closeOnce.Do(func() { close(wst.done) })

	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()

	if wst.server != nil {
		return wst.server.Close()
	}
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)
