package http

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"prodboard/internal/dashboard"
	"prodboard/internal/forms"
	applog "prodboard/internal/log"
	"prodboard/internal/middleware/ratelimit"
	"prodboard/internal/middleware/security"
	"prodboard/internal/middleware/trace"
	"prodboard/internal/services"
	appweb "prodboard/web"
)

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Board   *dashboard.Board
	Entries *services.EntryService
	Edits   *services.EditService
	// Store is checked by /readyz when it implements Pinger.
	Store any

	Logger             *applog.Logger
	RateLimitPerMinute int
}

// Server is the dashboard web server.
type Server struct {
	http.Server
	templates *template.Template

	board    *dashboard.Board
	entries  *services.EntryService
	edits    *services.EditService
	store    any
	inflight *forms.InFlight

	logger     *applog.Logger
	structured *applog.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime       time.Time
	rowsSaved    int64
	batchesSaved int64
	submitErrors int64
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		board:            deps.Board,
		entries:          deps.Entries,
		edits:            deps.Edits,
		store:            deps.Store,
		inflight:         forms.NewInFlight(),
		logger:           logger,
		structured:       applog.NewStructuredLogger(logger),
		securityDetector: security.NewDetector(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	limits := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = deps.RateLimitPerMinute
	}
	s.rateLimiter = ratelimit.NewLimiter(limits)
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	t, err := appweb.Templates(templateFuncs())
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.CacheStatic(time.Hour)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Board
	mux.HandleFunc("/ui/board", s.handleBoard)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/export.xlsx", s.handleExport)

	// Entry form
	mux.HandleFunc("/ui/entry", s.handleEntryModal)
	mux.HandleFunc("/ui/entry/rows", s.handleEntryRows)
	mux.HandleFunc("/entries", s.handleSubmitEntry)

	// Edit form
	mux.HandleFunc("/ui/edit", s.handleEditModal)
	mux.HandleFunc("/ui/edit/rows", s.handleEditRows)
	mux.HandleFunc("/batches", s.handleSubmitBatch)

	// Outermost first: trace, probe detection, headers, write rate limit.
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)(handler)
	handler = security.NewHeaders(security.BoardPolicy()).Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Close stops background routines without waiting for connections.
func (s *Server) Close() error {
	s.rateLimiter.Stop()
	return s.Server.Close()
}

// render executes a named template into memory so a failure can still be
// answered with a clean error response.
func (s *Server) render(ctx context.Context, name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(ctx, "Template execution failed",
			applog.FieldError, err,
			"template", name,
			applog.FieldOperation, applog.OpRender)
		return nil, err
	}
	return buf.Bytes(), nil
}

// respond renders name with data and writes it through b.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	html, err := s.render(r.Context(), name, data)
	if err != nil {
		InternalServerError("Could not render the page").Write(w)
		return
	}
	b.BodyHTML(html).Write(w)
}
