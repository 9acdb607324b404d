package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/log"
	"github.com/chrissnell/floodfreq/internal/pipeline"
	"github.com/chrissnell/floodfreq/internal/session"
	"github.com/chrissnell/floodfreq/pkg/config"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CookieName holds the analysis session id
const CookieName = "uid"

type contextKey string

const sessionContextKey contextKey = "session"

// Controller represents the REST server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	cfg      config.ServerData
	Server   http.Server
	store    session.Store
	service  *pipeline.Service
	defaults ffa.Options
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new REST server controller. defaults are the
// options a new session starts with.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg config.ServerData, store session.Store, service *pipeline.Service, defaults ffa.Options, logger *zap.SugaredLogger) (*Controller, error) {
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default analysis options: %w", err)
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if cfg.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		cfg.ListenAddr = config.DefaultListenAddr
	}
	if cfg.HTTPPort == 0 {
		logger.Infof("server.http_port not provided; defaulting to %d", config.DefaultHTTPPort)
		cfg.HTTPPort = config.DefaultHTTPPort
	}
	if cfg.CookieMaxAge == 0 {
		cfg.CookieMaxAge = config.DefaultCookieMaxAge
	}

	ctrl := &Controller{
		ctx:      ctx,
		wg:       wg,
		cfg:      cfg,
		store:    store,
		service:  service,
		defaults: defaults,
		logger:   logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", cfg.ListenAddr, cfg.HTTPPort)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.cfg.TLSCertPath != "" && c.cfg.TLSKeyPath != "" {
			if err := c.Server.ListenAndServeTLS(c.cfg.TLSCertPath, c.cfg.TLSKeyPath); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	router.HandleFunc("/api/health", c.handlers.GetHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(c.sessionMiddleware)

	api.HandleFunc("/options", c.handlers.GetOptions).Methods(http.MethodGet)
	api.HandleFunc("/options", c.handlers.PutOptions).Methods(http.MethodPut)
	api.HandleFunc("/dataset", c.handlers.GetDataset).Methods(http.MethodGet)
	api.HandleFunc("/dataset", c.handlers.PostDataset).Methods(http.MethodPost)
	api.HandleFunc("/dataset/plot", c.handlers.GetDatasetPlot).Methods(http.MethodGet)
	api.HandleFunc("/segments", c.handlers.GetSegments).Methods(http.MethodGet)
	api.HandleFunc("/change-point-detection", c.handlers.PostChangePoints).Methods(http.MethodPost)
	api.HandleFunc("/trend-detection", c.handlers.PostTrendDetection).Methods(http.MethodPost)
	api.HandleFunc("/approach-selection", c.handlers.GetApproach).Methods(http.MethodGet)
	api.HandleFunc("/approach-selection", c.handlers.PostApproach).Methods(http.MethodPost)
	api.HandleFunc("/distribution-selection", c.handlers.PostDistributionSelection).Methods(http.MethodPost)
	api.HandleFunc("/parameter-estimation", c.handlers.PostParameterEstimation).Methods(http.MethodPost)
	api.HandleFunc("/uncertainty-quantification", c.handlers.PostUncertaintyQuantification).Methods(http.MethodPost)
	api.HandleFunc("/model-assessment", c.handlers.PostModelAssessment).Methods(http.MethodPost)

	return router
}

// sessionMiddleware attaches the caller's session to the request context,
// issuing a new session id when the cookie is missing or malformed
func (c *Controller) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := ""
		if cookie, err := r.Cookie(CookieName); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				uid = cookie.Value
			}
		}
		if uid == "" {
			uid = uuid.NewString()
		}

		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    uid,
			Path:     "/",
			MaxAge:   c.cfg.CookieMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := context.WithValue(r.Context(), sessionContextKey, session.Open(c.store, uid))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler returns the HTTP handler serving every route
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}
