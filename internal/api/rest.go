package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Reel/internal/api/categories"
	"github.com/hbomb79/Reel/internal/api/imports"
	"github.com/hbomb79/Reel/internal/api/movies"
	"github.com/hbomb79/Reel/internal/api/status"
	"github.com/hbomb79/Reel/internal/auth"
	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/event"
	"github.com/hbomb79/Reel/internal/http/websocket"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logger.Get("API")

const basePath = "/api/reel/v1"

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`

		// The number of requests per window each client may make to the
		// expensive endpoints (drive scans and poster downloads).
		RateLimit              int `yaml:"rate_limit" env:"API_RATE_LIMIT" env-default:"10"`
		RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds" env:"API_RATE_LIMIT_WINDOW" env-default:"60"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	libraryService interface {
		movies.Library
		jobSource
	}

	// Services contains everything the controllers of the gateway
	// depend on.
	Services struct {
		Store      movies.Store
		Library    libraryService
		Streamer   movies.Streamer
		Prober     movies.Prober
		Posters    movies.Posters
		Workflow   imports.Workflow
		Categories *catalog.Categories
		Verifier   *auth.Verifier
		EventBus   event.EventDispatcher
		Offline    bool
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole responsibility
	// is to create the routes Reel exposes, manage ongoing web socket connections and events,
	// and to enforce the session middleware where applicable.
	RestGateway struct {
		*broadcaster
		config               *RestConfig
		ec                   *echo.Echo
		socket               *websocket.SocketHub
		moviesController     controller
		importsController    controller
		categoriesController controller
		statusController     controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers.
func NewRestGateway(config *RestConfig, services Services) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	limiter := echo.WrapMiddleware(httprate.LimitByIP(config.rateLimit(), config.rateLimitWindow()))

	socket := websocket.New()
	gateway := &RestGateway{
		broadcaster: newBroadcaster(socket, services.Library, services.Workflow),
		config:      config,
		ec:          ec,
		socket:      socket,
		moviesController: movies.New(
			validate,
			services.Store,
			services.Library,
			services.Streamer,
			services.Prober,
			services.Posters,
			services.Categories,
			services.EventBus,
			limiter,
		),
		importsController:    imports.New(validate, services.Workflow),
		categoriesController: categories.New(services.Categories),
		statusController:     status.New(services.Offline, services.Workflow),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.RemoveTrailingSlash())

	// Status and metrics are served without a session
	gateway.statusController.SetRoutes(ec.Group(basePath + "/status"))
	ec.GET(basePath+"/metrics", echo.WrapHandler(promhttp.Handler()))

	sessionMiddleware := services.Verifier.Middleware()
	requestValidation := mustNewRequestValidator().Middleware()
	ec.GET(basePath+"/activity/ws", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	}, sessionMiddleware)

	gateway.moviesController.SetRoutes(ec.Group(basePath+"/movies", sessionMiddleware, requestValidation))
	gateway.importsController.SetRoutes(ec.Group(basePath+"/imports", sessionMiddleware, requestValidation))
	gateway.categoriesController.SetRoutes(ec.Group(basePath+"/categories", sessionMiddleware))

	return gateway
}

// ServeHTTP allows the gateway to be used as a plain http.Handler, without
// the socket hub or the listener being started.
func (gateway *RestGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gateway.ec.ServeHTTP(w, r)
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.INFO, "Listening on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

func (config *RestConfig) rateLimit() int {
	if config.RateLimit < 1 {
		return 10
	}

	return config.RateLimit
}

func (config *RestConfig) rateLimitWindow() time.Duration {
	if config.RateLimitWindowSeconds < 1 {
		return time.Minute
	}

	return time.Duration(config.RateLimitWindowSeconds) * time.Second
}
