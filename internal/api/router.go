package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/buddywatch/internal/api/handlers"
	"github.com/your-org/buddywatch/internal/api/ws"
	"github.com/your-org/buddywatch/internal/asset"
	"github.com/your-org/buddywatch/internal/auth"
	"github.com/your-org/buddywatch/internal/inference"
)

const basePath = "/api/v1"

type RouterConfig struct {
	// APIKeys maps credential -> principal.
	APIKeys        map[string]string
	Videos         *asset.Service
	Predictor      *inference.Service
	Hub            *ws.Hub
	Checks         map[string]handlers.CheckFunc
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group(basePath)
	v1.Use(auth.APIKeyMiddleware(cfg.APIKeys))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	videoH := handlers.NewVideoHandler(cfg.Videos, basePath, cfg.MaxUploadBytes)
	v1.GET("/videos", videoH.List)
	v1.POST("/videos", videoH.Upload)
	v1.GET("/videos/:id", videoH.Get)
	v1.DELETE("/videos/:id", videoH.Delete)
	v1.GET("/videos/:id/download", videoH.Download)
	v1.GET("/videos/:id/thumbnail", videoH.Thumbnail)

	predictH := handlers.NewPredictHandler(cfg.Predictor, cfg.MaxUploadBytes)
	v1.POST("/predict", predictH.Predict)

	return r
}
