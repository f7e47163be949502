// Package preview serves the latest compiled document to a browser and
// pushes every new revision over a WebSocket.
package preview

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/core"
)

var log = commonlog.GetLogger("typstcore.preview")

// Message is sent over the WebSocket. The first message on a connection is
// the current revision.
type Message struct {
	Revision int      `json:"revision"`
	Format   string   `json:"format"`
	Pages    []string `json:"pages,omitempty"`
	HTML     string   `json:"html,omitempty"`
}

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Server struct {
	url string

	mu      sync.Mutex
	current Message

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool
}

func New() *Server {
	return &Server{clients: make(map[*websocket.Conn]bool)}
}

// Show starts the HTTP and WebSocket server on the given address (e.g. ":8080").
// It returns the URL where the preview can be viewed. Later calls return
// the same URL.
func (s *Server) Show(addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.url != "" {
		return s.url, nil
	}

	// Listen on the given address (":0" means any free port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return "", err
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/ws", s.handleWS)

	go func() {
		if err := http.Serve(l, mux); err != nil {
			log.Errorf("preview server: %s", err)
		}
	}()

	s.url = "http://" + l.Addr().String() + "/"
	log.Infof("preview at %s", s.url)
	return s.url, nil
}

// Publish makes out the current revision and sends it to every client.
func (s *Server) Publish(out *core.Output) error {
	s.mu.Lock()
	msg := Message{Revision: s.current.Revision + 1, Format: out.Format.String()}
	if out.Format == compiler.FormatHTML {
		msg.HTML = out.HTML
	} else {
		msg.Pages = out.SVG
	}
	s.current = msg
	s.mu.Unlock()
	return s.broadcast(msg)
}

// Current returns the latest revision.
func (s *Server) Current() Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// broadcast marshals and sends a message to all clients.
func (s *Server) broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warningf("broadcast: %s", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
	return nil
}

// handleWS upgrades HTTP connections and sends the current revision.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("websocket upgrade: %s", err)
		return
	}

	data, err := json.Marshal(s.Current())
	if err != nil {
		log.Errorf("marshal revision: %s", err)
		conn.Close()
		return
	}
	s.clientsMu.Lock()
	s.clients[conn] = true
	err = conn.WriteMessage(websocket.TextMessage, data)
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
	}()
	if err != nil {
		return
	}

	// keep connection open
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
}
