package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/shmbroker/core/broker"
	"github.com/dmitrymomot/shmbroker/core/health"
	"github.com/dmitrymomot/shmbroker/core/logger"
	"github.com/dmitrymomot/shmbroker/core/topic"
)

// Handler serves the control plane:
//
//	/rpc           websocket carrying Request and Response frames
//	/metrics       prometheus metrics, when a gatherer is configured
//	/health/live   liveness probe
//	/health/ready  readiness probe backed by the broker
type Handler struct {
	svc      *broker.Service
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	gatherer prometheus.Gatherer
	methods  map[string]method

	subscribeWait time.Duration
	readLimit     int64
	logger        *slog.Logger

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

type method func(ctx context.Context, params json.RawMessage) any

// NewHandler builds the control-plane handler for svc.
func NewHandler(svc *broker.Service, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, ErrServiceNil
	}

	h := &Handler{
		svc: svc,
		mux: http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subscribeWait: DefaultSubscribeWait,
		readLimit:     DefaultReadLimit,
		logger:        logger.Discard(),
		sessions:      make(map[*session]struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.methods = h.routes()

	h.mux.HandleFunc("GET /rpc", h.serveRPC)
	h.mux.HandleFunc("GET /health/live", health.Liveness)
	h.mux.Handle("GET /health/ready", health.Readiness(h.logger, svc.Healthcheck))
	if h.gatherer != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// CloseConnections disconnects every client and refuses new ones. In-flight
// requests on the dropped connections are canceled.
func (h *Handler) CloseConnections() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close(websocket.CloseGoingAway, "broker shutting down")
	}
}

// Sessions returns the number of connected clients.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Handler) serveRPC(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	conn.SetReadLimit(h.readLimit)

	s := newSession(r.Context(), conn, h.logger)
	if !h.track(s) {
		s.close(websocket.CloseGoingAway, "broker shutting down")
		return
	}
	defer h.untrack(s)

	s.logger.InfoContext(s.ctx, "control-plane client connected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WarnContext(s.ctx, "control-plane connection lost", logger.Error(err))
			}
			break
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.WarnContext(s.ctx, "malformed request frame", logger.Error(err))
			_ = s.reply(req.ID, StatusResult{Result: broker.CodeInvalidArgument})
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			h.serve(s, req)
		}()
	}

	s.shutdown()
	s.logger.InfoContext(r.Context(), "control-plane client disconnected")
}

// serve runs one request and writes its response. A pulled record whose
// response never reaches the client gives its buffer reference back.
func (h *Handler) serve(s *session, req Request) {
	res := h.dispatch(s, req)
	err := s.reply(req.ID, res)
	if err == nil {
		return
	}

	pr, ok := res.(PullResult)
	if !ok || pr.Result != broker.CodeOK || pr.BufferName == "" {
		s.logger.DebugContext(s.ctx, "failed to write response", logger.Error(err))
		return
	}
	s.logger.WarnContext(s.ctx, "pulled record undelivered, releasing buffer",
		logger.Buffer(pr.BufferName), logger.Error(err))
	if rerr := h.svc.ReleaseBuffer(context.WithoutCancel(s.ctx), pr.BufferName); rerr != nil {
		s.logger.ErrorContext(s.ctx, "failed to release undelivered buffer",
			logger.Buffer(pr.BufferName), logger.Error(rerr))
	}
}

func (h *Handler) dispatch(s *session, req Request) any {
	m, ok := h.methods[req.Method]
	if !ok {
		s.logger.WarnContext(s.ctx, "unknown method", logger.Method(req.Method))
		return StatusResult{Result: broker.CodeInvalidArgument}
	}

	start := time.Now()
	res := m(s.ctx, req.Params)
	s.logger.DebugContext(s.ctx, "request served",
		logger.Method(req.Method), logger.Duration(time.Since(start)))

	return res
}

func (h *Handler) track(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	return true
}

func (h *Handler) untrack(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

// session is one connected client.
type session struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	writeMu sync.Mutex
}

func newSession(parent context.Context, conn *websocket.Conn, log *slog.Logger) *session {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	id := uuid.NewString()
	return &session{
		id:     id,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(logger.Session(id)),
	}
}

func (s *session) reply(id uint64, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.ErrorContext(s.ctx, "failed to encode response", logger.Error(err))
		raw, _ = json.Marshal(StatusResult{Result: broker.CodeInternal})
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteJSON(Response{ID: id, Result: raw})
}

// shutdown cancels in-flight requests, waits for them and closes the socket.
func (s *session) shutdown() {
	s.cancel()
	s.wg.Wait()
	_ = s.conn.Close()
}

func (s *session) close(code int, text string) {
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
	s.cancel()
	_ = s.conn.Close()
}

func (h *Handler) routes() map[string]method {
	return map[string]method{
		MethodCreateBuffer: func(ctx context.Context, raw json.RawMessage) any {
			p, err := bind[CreateBufferParams](raw)
			if err != nil {
				return CreateBufferResult{Result: broker.ResultCode(err)}
			}
			name, err := h.svc.CreateBuffer(ctx, p.Size)
			return CreateBufferResult{Name: name, Result: broker.ResultCode(err)}
		},

		MethodGetBuffer: func(ctx context.Context, raw json.RawMessage) any {
			p, err := bind[BufferParams](raw)
			if err != nil {
				return GetBufferResult{Result: broker.ResultCode(err)}
			}
			size, err := h.svc.GetBuffer(ctx, p.Name)
			return GetBufferResult{Size: size, Result: broker.ResultCode(err)}
		},

		MethodReleaseBuffer: func(ctx context.Context, raw json.RawMessage) any {
			p, err := bind[BufferParams](raw)
			if err != nil {
				return StatusResult{Result: broker.ResultCode(err)}
			}
			return StatusResult{Result: broker.ResultCode(h.svc.ReleaseBuffer(ctx, p.Name))}
		},

		MethodRegisterTopic: func(ctx context.Context, raw json.RawMessage) any {
			p, err := bind[RegisterTopicParams](raw)
			if err != nil {
				return StatusResult{Result: broker.ResultCode(err)}
			}
			return StatusResult{Result: broker.ResultCode(h.svc.RegisterTopic(ctx, p.Name))}
		},

		MethodGetSubscriberCount: func(ctx context.Context, raw json.RawMessage) any {
			p, err := bind[GetSubscriberCountParams](raw)
			if err != nil {
				return GetSubscriberCountResult{Result: broker.ResultCode(err)}
			}
			n, err := h.svc.GetSubscriberCount(ctx, p.TopicName)
			return GetSubscriberCountResult{NumSubs: n, Result: broker.ResultCode(err)}
		},

		MethodSubscribe: func(ctx context.Context, raw json.RawMessage) any {
			p, err := bind[SubscribeParams](raw)
			if err != nil {
				return StatusResult{Result: broker.ResultCode(err)}
			}
			wait := millis(p.WaitTimeoutMS)
			if p.Wait && p.WaitTimeoutMS == 0 {
				wait = h.subscribeWait
			}
			err = h.svc.Subscribe(ctx, topic.SubscribeRequest{
				Topic:        p.TopicName,
				Subscriber:   subscriberID(p.SubscriberName, p.ID),
				MaxQueueSize: p.MaxQueueSize,
				Depends:      dependencies(p.Dependencies),
				Wait:         p.Wait,
				WaitTimeout:  wait,
			})
			return StatusResult{Result: broker.ResultCode(err)}
		},

		MethodPublish: func(ctx context.Context, raw json.RawMessage) any {
			p, err := bind[PublishParams](raw)
			if err != nil {
				return StatusResult{Result: broker.ResultCode(err)}
			}
			_, err = h.svc.Publish(ctx, p.TopicName, topic.Record{
				BufferID:  p.BufferName,
				Metadata:  p.Metadata,
				Timestamp: p.Timestamp,
			})
			return StatusResult{Result: broker.ResultCode(err)}
		},

		MethodPull: func(ctx context.Context, raw json.RawMessage) any {
			p, err := bind[PullParams](raw)
			if err != nil {
				return PullResult{Result: broker.ResultCode(err)}
			}
			rec, err := h.svc.Pull(ctx, p.TopicName, subscriberID(p.SubscriberName, p.ID), millis(p.Timeout))
			return PullResult{
				BufferName: rec.BufferID,
				Metadata:   rec.Metadata,
				Timestamp:  rec.Timestamp,
				Result:     broker.ResultCode(err),
			}
		},

		MethodGenerateID: func(context.Context, json.RawMessage) any {
			return GenerateIDResult{ID: h.svc.GenerateID()}
		},

		MethodListTopics: func(ctx context.Context, _ json.RawMessage) any {
			topics, err := h.svc.ListTopics(ctx)
			return ListTopicsResult{Topics: topics, Result: broker.ResultCode(err)}
		},
	}
}

func bind[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, errors.Join(broker.ErrInvalidArgument, err)
	}
	return p, nil
}
