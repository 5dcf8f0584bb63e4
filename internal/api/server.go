package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/audiocard/internal/api/models"
	"github.com/smazurov/audiocard/internal/card"
	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/events"
	"github.com/smazurov/audiocard/internal/jack"
	"github.com/smazurov/audiocard/internal/led"
	"github.com/smazurov/audiocard/internal/logging"
	"github.com/smazurov/audiocard/internal/systemd"
	"github.com/smazurov/audiocard/internal/version"
)

const authRealm = `Basic realm="audiocard"`

const modulePath = "github.com/smazurov/audiocard/"

// schemaNamer prefixes schema names of domain types with their package so
// card.Status, jack.Status and updater.Status get distinct components.
// Request and response models keep their bare names.
func schemaNamer(t reflect.Type, hint string) string {
	name := huma.DefaultSchemaNamer(t, hint)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || !strings.HasPrefix(t.PkgPath(), modulePath) {
		return name
	}
	pkg := path.Base(t.PkgPath())
	if pkg == "models" {
		return name
	}
	return strings.ToUpper(pkg[:1]) + pkg[1:] + name
}

// CardService is the orchestrator surface the API drives.
type CardService interface {
	Status() card.Status
	Links() []string
	HWParams(name string, p dai.Params) (dai.Result, error)
	HWFree(name string) error
	Suspend() error
	Resume(ctx context.Context) error
	PollJack() (jack.Status, error)
}

// ServiceManager reports on and restarts allow-listed systemd units.
type ServiceManager interface {
	Units() []string
	Allowed(unit string) bool
	Status(ctx context.Context, unit string) (systemd.UnitStatus, error)
	Restart(ctx context.Context, unit string) (string, error)
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	CORSOrigin        string
	Card              CardService
	EventBus          *events.Bus
	PrometheusHandler http.Handler // served at GET /metrics without auth
	LEDController     led.Controller
	Services          ServiceManager
	Updater           UpdateService
}

// Server is the huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	card       CardService
	eventBus   *events.Bus
	logger     *slog.Logger
}

// basicAuthMiddleware enforces HTTP basic auth on operations that declare
// a security requirement. SSE clients may pass credentials as ?auth=.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded := ""
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
			encoded = header[len(prefix):]
		} else {
			encoded = ctx.Query("auth")
		}
		if encoded == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.unauthorized(ctx, "Invalid credentials format", err)
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			s.unauthorized(ctx, "Invalid credentials format")
			return
		}
		if user != username || pass != password {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}
		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, msg string, errs ...error) {
	ctx.SetHeader("WWW-Authenticate", authRealm)
	_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("audiocard API", version.String())
	config.Info.Description = "Control and inspection of the machine audio card: clocks, links, jack and power"
	config.Servers = []*huma.Server{}
	config.Components.Schemas = huma.NewMapRegistry("#/components/schemas/", schemaNamer)
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		card:     opts.Card,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start listens on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting audiocard API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener. Open SSE streams are cut.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health and card power state",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		power := string(card.PowerRemoved)
		if s.card != nil {
			power = s.card.Status().Power
		}
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Power:   power,
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   v.Version,
				GitCommit: v.GitCommit,
				BuildDate: v.BuildDate,
				BuildID:   v.BuildID,
				GoVersion: v.GoVersion,
				Compiler:  v.Compiler,
				Platform:  v.Platform,
			},
		}, nil
	})

	if s.card != nil {
		s.registerCardRoutes()
		s.registerLinkRoutes()
	}
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerMetricsRoutes()
	s.registerLEDRoutes()
	s.registerServiceRoutes()
	s.registerUpdateRoutes()
}

// withAuth returns the basic auth security requirement.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
