package http

import (
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/fluxauth/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services and settings the router serves.
type Deps struct {
	Issuer     *service.Issuer
	Login      *service.LoginService
	Signatures *service.SignatureService
	Sessions   *service.SessionManager
	Waiter     *service.Waiter

	Logger   *slog.Logger
	Gatherer prometheus.Gatherer // nil disables /metrics
	Limiter  *RateLimiter        // nil disables rate limiting
}

// SetupRouter sets up the Gin router
func SetupRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "http")

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := &Handlers{
		issuer:     deps.Issuer,
		login:      deps.Login,
		signatures: deps.Signatures,
		sessions:   deps.Sessions,
		waiter:     deps.Waiter,
		logger:     logger,
	}

	id := router.Group("/id")
	id.Use(CredentialsMiddleware())
	{
		issuance := id.Group("")
		if deps.Limiter != nil {
			issuance.Use(deps.Limiter.Middleware())
		}
		issuance.GET("/loginphrase", handlers.LoginPhrase)
		issuance.POST("/loginphrase", handlers.LoginPhrase)
		issuance.GET("/emergencyphrase", handlers.EmergencyPhrase)
		issuance.POST("/emergencyphrase", handlers.EmergencyPhrase)

		id.POST("/verifylogin", handlers.VerifyLogin)
		id.POST("/providesign", handlers.ProvideSign)
		id.POST("/checkprivilege", handlers.CheckPrivilege)

		id.GET("/activeloginphrases", handlers.ActiveLoginPhrases)
		id.GET("/loggedusers", handlers.LoggedUsers)
		id.GET("/loggedsessions", handlers.LoggedSessions)

		id.GET("/logoutcurrentsession", handlers.LogoutCurrentSession)
		id.POST("/logoutcurrentsession", handlers.LogoutCurrentSession)
		id.POST("/logoutspecificsession", handlers.LogoutSpecificSession)
		id.GET("/logoutallsessions", handlers.LogoutAllSessions)
		id.POST("/logoutallsessions", handlers.LogoutAllSessions)
		id.GET("/logoutallusers", handlers.LogoutAllUsers)
		id.POST("/logoutallusers", handlers.LogoutAllUsers)
	}

	ws := router.Group("/ws")
	{
		ws.GET("/id/:loginphrase", handlers.WaitLogin)
		ws.GET("/sign/:identifier", handlers.WaitSignature)
	}

	router.GET("/health", handlers.Health)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}
