// Package ingest accepts progress samples from the network (a phone or
// watch streaming GPS-derived distance) and serves the session status and
// metrics.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hammamikhairi/rendezvouscoach/internal/clock"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
	"github.com/hammamikhairi/rendezvouscoach/internal/metrics"
)

// Pusher accepts samples without blocking. *sample.Push implements it.
type Pusher interface {
	Push(s domain.Sample) error
}

// Option configures the server.
type Option func(*Server)

// WithMetrics serves m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithClock stamps readings that carry no timestamp.
func WithClock(clk clock.Clock) Option {
	return func(s *Server) {
		s.clock = clk
	}
}

// WithSessionID pins /status to one session, so it keeps answering after
// the session has ended.
func WithSessionID(id string) Option {
	return func(s *Server) {
		s.sessionID = id
	}
}

// Server is the HTTP and websocket front door.
type Server struct {
	echo      *echo.Echo
	push      Pusher
	store     domain.SessionStore
	log       *logger.Logger
	metrics   *metrics.Metrics
	clock     clock.Clock
	sessionID string
	upgrader  websocket.Upgrader
}

// New builds the server and its routes.
func New(push Pusher, store domain.SessionStore, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		push:  push,
		store: store,
		log:   log,
		clock: clock.Wall{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Phones on the local network connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("%s %s -> %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/status", s.status)
	e.GET("/samples", s.stream)
	e.POST("/samples", s.post)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("ingest listening on %s", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ingest server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ingest shutdown: %w", err)
	}
	s.log.Info("ingest stopped")
	return nil
}

// reading is the wire format of one sample. Exactly one of the distances
// must be set; a missing timestamp means "now".
type reading struct {
	T         *time.Time `json:"t,omitempty"`
	Remaining *float64   `json:"remaining_m,omitempty"`
	Elapsed   *float64   `json:"elapsed_m,omitempty"`
}

type ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) toSample(r reading) (domain.Sample, error) {
	smp := domain.Sample{At: s.clock.Now()}
	if r.T != nil {
		smp.At = *r.T
	}
	switch {
	case r.Remaining != nil && r.Elapsed == nil:
		smp.Kind, smp.Value = domain.ProgressRemaining, *r.Remaining
	case r.Elapsed != nil && r.Remaining == nil:
		smp.Kind, smp.Value = domain.ProgressElapsed, *r.Elapsed
	default:
		return smp, fmt.Errorf("need exactly one of remaining_m, elapsed_m: %w", domain.ErrSampleMalformed)
	}
	return smp, nil
}

func (s *Server) accept(r reading) ack {
	smp, err := s.toSample(r)
	if err == nil {
		err = s.push.Push(smp)
	}
	if err != nil {
		s.log.Warn("ingest: %v", err)
		return ack{Error: err.Error()}
	}
	return ack{OK: true}
}

// post takes a single reading over plain HTTP.
func (s *Server) post(c echo.Context) error {
	var r reading
	if err := json.NewDecoder(c.Request().Body).Decode(&r); err != nil {
		return c.JSON(http.StatusBadRequest, ack{Error: "invalid JSON: " + err.Error()})
	}
	a := s.accept(r)
	if !a.OK {
		return c.JSON(http.StatusUnprocessableEntity, a)
	}
	return c.JSON(http.StatusAccepted, a)
}

// stream reads one JSON reading per text frame and acks each one.
func (s *Server) stream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("ingest: websocket upgrade: %v", err)
		return nil
	}
	defer func() { _ = conn.Close() }()
	s.log.Info("ingest: stream connected from %s", c.RealIP())

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("ingest: stream read: %v", err)
			}
			s.log.Info("ingest: stream closed")
			return nil
		}
		if mt != websocket.TextMessage {
			continue
		}

		var a ack
		var r reading
		if err := json.Unmarshal(data, &r); err != nil {
			a = ack{Error: "invalid JSON: " + err.Error()}
		} else {
			a = s.accept(r)
		}
		if err := conn.WriteJSON(a); err != nil {
			s.log.Warn("ingest: stream write: %v", err)
			return nil
		}
	}
}

// statusView is the JSON shape of /status.
type statusView struct {
	ID          string     `json:"id"`
	Plan        string     `json:"plan,omitempty"`
	Status      string     `json:"status"`
	Rendezvous  time.Time  `json:"rendezvous"`
	Remaining   float64    `json:"remaining_m"`
	Pace        float64    `json:"pace_mps"`
	HasEstimate bool       `json:"has_estimate"`
	Projected   *time.Time `json:"projected_arrival,omitempty"`
	Deviation   float64    `json:"deviation_s"`
	Band        string     `json:"band"`
	CueState    string     `json:"cue_state"`
	LastCue     string     `json:"last_cue,omitempty"`
	Accepted    int        `json:"accepted"`
	Rejected    int        `json:"rejected"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func viewOf(sess *domain.Session) statusView {
	v := statusView{
		ID:          sess.ID,
		Plan:        sess.PlanName,
		Status:      sess.Status.String(),
		Rendezvous:  sess.Target.Rendezvous,
		Remaining:   sess.Pacing.Remaining,
		Pace:        sess.Pacing.Pace,
		HasEstimate: sess.Pacing.HasEstimate,
		Deviation:   sess.Pacing.Deviation.Seconds(),
		Band:        sess.Pacing.Band.String(),
		CueState:    sess.Scheduler.State.String(),
		Accepted:    sess.Accepted,
		Rejected:    sess.Rejected,
		UpdatedAt:   sess.UpdatedAt,
	}
	if sess.Pacing.HasEstimate {
		p := sess.Pacing.ProjectedArrival
		v.Projected = &p
	}
	if sess.LastCue != nil {
		v.LastCue = sess.LastCue.Text
	}
	return v
}

func (s *Server) status(c echo.Context) error {
	ctx := c.Request().Context()

	var sess *domain.Session
	if s.sessionID != "" {
		loaded, err := s.store.Load(ctx, s.sessionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusInternalServerError, ack{Error: err.Error()})
		}
		sess = loaded
	} else {
		active, err := s.store.ListActive(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ack{Error: err.Error()})
		}
		if len(active) > 0 {
			sess = active[0]
		}
	}
	if sess == nil {
		return c.JSON(http.StatusNotFound, ack{Error: "no session"})
	}
	return c.JSON(http.StatusOK, viewOf(sess))
}
