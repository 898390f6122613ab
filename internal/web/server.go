package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/intelligrit/durian-map/internal/backend"
	"github.com/intelligrit/durian-map/internal/discovery"
	"github.com/intelligrit/durian-map/internal/geolocate"
	"github.com/intelligrit/durian-map/internal/loading"
	"github.com/intelligrit/durian-map/internal/metrics"
	"github.com/intelligrit/durian-map/internal/routing"
)

//go:embed all:static
var staticFS embed.FS

// Server serves the discovery web app and its JSON API.
type Server struct {
	Source  backend.Source
	Router  routing.Router
	Locator geolocate.Locator
	Metrics *metrics.Metrics
	Logger  log.Logger
	Addr    string

	Debounce         time.Duration
	NarrowBreakpoint int

	// SessionTTL closes sessions that saw no request for this long. Tabs
	// that crash never send DELETE. Zero means DefaultSessionTTL.
	SessionTTL time.Duration

	// Loading is shared by every session, like a single app-wide spinner.
	Loading loading.Tracker

	watchOnce sync.Once
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// DefaultSessionTTL is the idle time after which a session is closed.
const DefaultSessionTTL = 30 * time.Minute

type sessionEntry struct {
	sess     *discovery.Session
	lastSeen time.Time
}

// Handler builds the HTTP handler.
func (s *Server) Handler() (http.Handler, error) {
	if s.Logger == nil {
		s.Logger = log.DefaultLogger
	}
	s.watchOnce.Do(func() {
		h := log.NewHelper(s.Logger)
		s.Loading.Subscribe(func(busy bool) {
			s.Metrics.Loading(busy)
			h.Debugf("loading indicator busy=%v", busy)
		})
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/meta", s.handleMeta)
		api.Get("/orchards", s.handleOrchards)
		api.Get("/orchards/{id}", s.handleOrchard)

		api.Post("/sessions", s.handleCreateSession)
		api.Route("/sessions/{sid}", func(sr chi.Router) {
			sr.Get("/", s.handleSessionState)
			sr.Delete("/", s.handleCloseSession)
			sr.Get("/route.geojson", s.handleRouteGeoJSON)
			sr.Post("/{action}", s.handleSessionAction)
		})
	})
	r.Handle("/metrics", s.Metrics.Handler())

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating sub filesystem: %w", err)
	}
	r.Handle("/*", http.FileServer(http.FS(staticSub)))

	return r, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	h, err := s.Handler()
	if err != nil {
		return err
	}
	fmt.Printf("Serving at http://%s\n", s.Addr)
	return http.ListenAndServe(s.Addr, h)
}

func (s *Server) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Server) openSession() *discovery.Session {
	s.expireIdle()

	sess := discovery.NewSession(uuid.NewString(), discovery.Options{
		Source:           s.Source,
		Router:           s.Router,
		Locator:          s.Locator,
		Debounce:         s.Debounce,
		NarrowBreakpoint: s.NarrowBreakpoint,
		Tracker:          &s.Loading,
		Metrics:          s.Metrics,
		Logger:           s.Logger,
	})
	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = make(map[string]*sessionEntry)
	}
	s.sessions[sess.ID] = &sessionEntry{sess: sess, lastSeen: s.clock()}
	s.mu.Unlock()
	return sess
}

// expireIdle closes every session idle for longer than SessionTTL.
func (s *Server) expireIdle() {
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	cutoff := s.clock().Add(-ttl)

	var stale []*discovery.Session
	s.mu.Lock()
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Close()
	}
	if len(stale) > 0 {
		log.NewHelper(s.Logger).Infof("closed %d idle sessions", len(stale))
	}
}

// session looks up an open session and marks it as recently used.
func (s *Server) session(id string) (*discovery.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.clock()
	return e.sess, true
}

func (s *Server) closeSession(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		e.sess.Close()
	}
	return ok
}

// CloseAll ends every open session.
func (s *Server) CloseAll() {
	s.mu.Lock()
	open := s.sessions
	s.sessions = nil
	s.mu.Unlock()
	for _, e := range open {
		e.sess.Close()
	}
}

func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	h := log.NewHelper(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			h.Debugw("method", r.Method, "path", r.URL.Path, "status", ww.Status(),
				"took", time.Since(start).String(), "request_id", middleware.GetReqID(r.Context()))
		})
	}
}
