// Package grpc provides a lightweight JSON-over-TCP RPC framework used between
// the descriptor server and the processes that drive the batch pipeline.
//
// Protocol: newline-delimited JSON over a persistent TCP connection.
//
// Example server:
//
//	s := grpc.NewServer()
//	s.Register(proto.MethodComputeBatch, func(ctx context.Context, req json.RawMessage) (any, error) {
//	    var in proto.ComputeBatchRequest
//	    if err := json.Unmarshal(req, &in); err != nil {
//	        return nil, err
//	    }
//	    return &proto.ComputeBatchResponse{...}, nil
//	})
//	s.Serve(":9100")
//
// Example client:
//
//	c, _ := grpc.Dial("localhost:9100")
//	var resp proto.ComputeBatchResponse
//	c.Call(ctx, proto.MethodComputeBatch, &proto.ComputeBatchRequest{...}, &resp)
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// HandlerFunc processes an RPC request and returns a response or error.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// Request is the wire format for an RPC request.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format for an RPC response.
type Response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Server is a lightweight JSON-over-TCP RPC server.
type Server struct {
	handlers map[string]HandlerFunc
	listener net.Listener
	logger   *slog.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
	ready    chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// NewServer creates a new RPC server.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handlers: make(map[string]HandlerFunc),
		logger:   slog.Default().With("component", "rpc-server"),
		ready:    make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a handler for the given RPC method name.
// Method names follow the "Service.Method" convention.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Serve starts accepting TCP connections on the given address.
// It blocks until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
				s.logger.Error("accept error", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Addr blocks until the server is listening and returns its address.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener.Addr()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	go func() {
		<-s.ctx.Done()
		conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return
		}

		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{ID: req.ID}

	s.mu.RLock()
	handler, exists := s.handlers[req.Method]
	s.mu.RUnlock()
	if !exists {
		resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
		return resp
	}

	data, err := handler(s.ctx, req.Params)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	raw, err := json.Marshal(data)
	if err != nil {
		resp.Error = fmt.Sprintf("marshaling response: %v", err)
		return resp
	}
	resp.Data = raw
	return resp
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Stop closes the listener and every open connection, then waits for
// in-flight handlers to return.
func (s *Server) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.mu.RLock()
		ln := s.listener
		s.mu.RUnlock()
		if ln != nil {
			ln.Close()
		}
		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}
