package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// Server es el servidor Unix socket
type Server struct {
	socketPath string
	listener   net.Listener
	handlers   *Handlers
	wg         sync.WaitGroup
}

// Request representa una petición al daemon
type Request struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Response representa una respuesta del daemon
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// NewServer crea un nuevo servidor
func NewServer(socketPath string, handlers *Handlers) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   handlers,
	}
}

// Start inicia el servidor
func (s *Server) Start(ctx context.Context) error {
	// Crear directorio para socket
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	// Limpiar socket anterior si existe
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	log.Printf("Server listening on %s", s.socketPath)

	go s.acceptLoop(ctx)

	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection maneja una conexión: un request, un response
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.sendError(conn, fmt.Errorf("decode request: %w", err))
		return
	}

	if req.Action != "ping" && req.Action != "stats" && req.Action != "notices" && req.Action != "list" {
		log.Printf("Received request: action=%s", req.Action)
	}

	resp := s.handlers.Dispatch(ctx, req.Action, req.Payload)

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// sendError envía una respuesta de error
func (s *Server) sendError(conn net.Conn, err error) {
	resp := Response{
		Success: false,
		Error:   err.Error(),
	}
	json.NewEncoder(conn).Encode(resp)
}

// Stop detiene el servidor y espera las conexiones en curso
func (s *Server) Stop() error {
	log.Println("Server stopping...")
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
	return err
}
