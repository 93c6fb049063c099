package http

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"discus-vision/internal/bootstrap"
	"discus-vision/internal/pkg/jwtutil"
	"discus-vision/internal/transport/http/handler"
	"discus-vision/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = app.Config.Storage.MaxUploadBytes
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery())
	if app.Config.Sentry.DSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(middleware.CORS(app.Config.Origins()))

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/health", healthHandler.Liveness)
	router.GET("/healthz", healthHandler.Readiness)

	imageHandler := handler.NewImageHandler(app.Images, app.Config.Storage.MaxUploadBytes, app.Logger)
	router.POST("/predict", imageHandler.Predict)

	api := router.Group("/api")
	api.POST("/upload", imageHandler.Upload)
	api.POST("/cleanup", imageHandler.Cleanup)

	v1 := api.Group("/v1")
	v1.GET("/predictions",
		middleware.AuthJWT(app.Config.Auth.JWTSecret, jwtutil.RoleOperator),
		imageHandler.ListPredictions,
	)

	return router
}
