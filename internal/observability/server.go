package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/rndlabs/daily-stoic-waku/internal/storage"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// ServerConfig controls the debug HTTP server.
//
// Security:
//   - Prefer binding to localhost (default).
//   - A non-loopback Addr requires Token or AllowInsecure.
type ServerConfig struct {
	Addr          string
	Pprof         bool
	Token         string
	AllowInsecure bool
}

// Health reports whether the daemon is serving and a short state name.
type Health func() (ok bool, state string)

// JournalReader is the read side of the broadcast journal.
type JournalReader interface {
	RecentBroadcasts(ctx context.Context, limit int) ([]storage.BroadcastRecord, error)
}

type Server struct {
	cfg     ServerConfig
	log     logx.Logger
	health  Health
	metrics *Metrics
	journal JournalReader
	extra   func() any
}

type ServerOption func(*Server)

func WithHealth(h Health) ServerOption             { return func(s *Server) { s.health = h } }
func WithMetrics(m *Metrics) ServerOption          { return func(s *Server) { s.metrics = m } }
func WithJournal(j JournalReader) ServerOption     { return func(s *Server) { s.journal = j } }
func WithLogger(log logx.Logger) ServerOption      { return func(s *Server) { s.log = log } }
func WithHealthDetails(fn func() any) ServerOption { return func(s *Server) { s.extra = fn } }

func NewServer(cfg ServerConfig, opts ...ServerOption) *Server {
	s := &Server{cfg: cfg, log: logx.Nop()}
	for _, o := range opts {
		o(s)
	}
	if strings.TrimSpace(s.cfg.Addr) == "" {
		s.cfg.Addr = "127.0.0.1:9464"
	}
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(s.cfg.Token, h) }

	mux.HandleFunc("/healthz", wrap(s.handleHealth))
	mux.Handle("/metrics", wrap(s.metrics.Handler().ServeHTTP))
	mux.HandleFunc("/broadcasts", wrap(s.handleBroadcasts))

	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
		mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
		mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
		mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
		mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))
	}
	return mux
}

// Run listens and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)

	// Safety: prevent accidental public exposure without auth.
	if !isLoopbackAddr(addr) && s.cfg.Token == "" {
		if !s.cfg.AllowInsecure {
			return errors.New("http: non-loopback addr requires token or allow_insecure")
		}
		s.log.Warn("http server running without token on non-loopback addr (insecure)", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// WriteTimeout stays 0 so /debug/pprof/profile (30s+) works.
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("http server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("pprof", s.cfg.Pprof),
		logx.Bool("token_set", s.cfg.Token != ""),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		s.log.Info("http server stopped")
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ok, state := true, "unknown"
	if s.health != nil {
		ok, state = s.health()
	}
	body := map[string]any{"ok": ok, "state": state}
	if s.extra != nil {
		body["details"] = s.extra()
	}
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

func (s *Server) handleBroadcasts(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := s.journal.RecentBroadcasts(r.Context(), limit)
	if err != nil {
		s.log.Warn("journal read failed", logx.Err(err))
		http.Error(w, "journal read failed", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []storage.BroadcastRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		// Accept either "Authorization: Bearer <token>" or "?token=<token>".
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// empty host means all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
