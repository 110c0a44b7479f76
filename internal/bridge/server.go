// Package bridge serves the Service to a UI process as newline-delimited
// JSON. Each request line is {"id":..,"method":..,"params":..}; each reply
// is {"id":..,"result":..} or {"id":..,"error":".."}. Events are pushed
// between replies as {"event":{..}}.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/app"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/logging"
)

// MaxLineBytes bounds one request line.
const MaxLineBytes = 16 << 20

type handler func(ctx context.Context, params json.RawMessage) (any, error)

type request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type eventMessage struct {
	Event events.Event `json:"event"`
}

// Server answers requests against one Service.
type Server struct {
	svc      *app.Service
	handlers map[string]handler

	writeMu sync.Mutex
	enc     *json.Encoder
}

// NewServer writes replies and events to w.
func NewServer(svc *app.Service, w io.Writer) *Server {
	s := &Server{svc: svc, enc: json.NewEncoder(w)}
	s.handlers = s.routes()
	return s
}

// Methods lists the method names the server answers.
func (s *Server) Methods() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

// Serve reads requests from r until EOF or until ctx ends. Requests run
// concurrently; replies are written in completion order and matched by id.
// Serve returns after every in-flight request has replied.
func (s *Server) Serve(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := s.svc.Events().Subscribe()
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		s.forwardEvents(ctx, sub)
	}()
	defer func() {
		s.svc.Events().Unsubscribe(sub)
		<-forwarded
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(response{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		wg.Add(1)
		go func(req request) {
			defer wg.Done()
			s.write(s.handle(ctx, req))
		}(req)

		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		logging.Error("bridge: read failed", zap.Error(err))
		return err
	}
	return ctx.Err()
}

func (s *Server) handle(ctx context.Context, req request) response {
	ctx = logging.WithRequestID(ctx, string(req.ID))
	log := logging.FromContext(ctx)

	h, ok := s.handlers[req.Method]
	if !ok {
		log.Warn("bridge: unknown method", zap.String("method", req.Method))
		return response{ID: req.ID, Error: fmt.Sprintf("unknown method %q", req.Method)}
	}

	result, err := h(ctx, req.Params)
	if err != nil {
		log.Debug("bridge: request failed", zap.String("method", req.Method), zap.Error(err))
		return response{ID: req.ID, Error: err.Error()}
	}
	log.Debug("bridge: request done", zap.String("method", req.Method))
	return response{ID: req.ID, Result: result}
}

func (s *Server) forwardEvents(ctx context.Context, sub chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			s.write(eventMessage{Event: e})
		}
	}
}

func (s *Server) write(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		logging.Warn("bridge: write failed", zap.Error(err))
	}
}
