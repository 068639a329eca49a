package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/buddywatch/internal/api"
	"github.com/your-org/buddywatch/internal/api/handlers"
	"github.com/your-org/buddywatch/internal/api/ws"
	"github.com/your-org/buddywatch/internal/asset"
	"github.com/your-org/buddywatch/internal/config"
	"github.com/your-org/buddywatch/internal/inference"
	"github.com/your-org/buddywatch/internal/media"
	"github.com/your-org/buddywatch/internal/models"
	"github.com/your-org/buddywatch/internal/observability"
	"github.com/your-org/buddywatch/internal/queue"
	"github.com/your-org/buddywatch/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting buddywatch API",
		"port", cfg.Server.Port,
		"blob_backend", cfg.Blob.Backend,
		"db_backend", cfg.Database.Backend,
	)
	if len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("no API keys configured; every authenticated route will answer 401")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobs, err := storage.OpenBlobStore(ctx, cfg)
	if err != nil {
		slog.Error("open blob store", "error", err)
		os.Exit(1)
	}

	records, closeRecords, err := storage.OpenRecordStore(ctx, cfg)
	if err != nil {
		slog.Error("open record store", "error", err)
		os.Exit(1)
	}
	defer closeRecords()

	checks := map[string]handlers.CheckFunc{
		"records": records.Ping,
		"blobs":   blobs.Ping,
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	var opts []asset.Option
	if cfg.NATS.URL != "" {
		producer, consumer := startEvents(ctx, cfg.NATS.URL, hub)
		if producer != nil {
			defer producer.Close()
			opts = append(opts, asset.WithEvents(producer))
			checks["nats"] = producer.Ping
		}
		if consumer != nil {
			defer consumer.Close()
		}
	} else {
		slog.Info("nats disabled; websocket clients receive no asset events")
	}

	videos := asset.NewService(blobs, records, media.NewFFmpegExtractor(cfg.Media), opts...)

	// Predict degrades to 503 when the runtime or model is unavailable.
	var predictor *inference.Service
	libPath := cfg.Inference.LibraryPath
	if libPath == "" {
		libPath = getONNXLibPath()
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed; predict unavailable", "error", err)
	} else {
		defer ort.DestroyEnvironment()
		model, err := inference.NewONNXModel(cfg.Inference, nil)
		if err != nil {
			slog.Warn("load face model failed; predict unavailable", "path", cfg.Inference.ModelPath, "error", err)
		} else {
			defer model.Close()
			predictor = inference.NewService(model, cfg.Inference.InputSize)
			slog.Info("face model ready", "path", cfg.Inference.ModelPath)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		APIKeys:        cfg.Auth.APIKeys,
		Videos:         videos,
		Predictor:      predictor,
		Hub:            hub,
		Checks:         checks,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("API server stopped")
}

// startEvents connects the asset event producer and the consumer that
// feeds the websocket hub. Either may be nil if NATS is unreachable.
func startEvents(ctx context.Context, url string, hub *ws.Hub) (*queue.Producer, *queue.Consumer) {
	producer, err := queue.NewProducer(url)
	if err != nil {
		slog.Warn("connect nats producer; asset events disabled", "error", err)
		return nil, nil
	}
	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	consumer, err := queue.NewConsumer(url)
	if err != nil {
		slog.Warn("connect nats consumer; websocket fan-out disabled", "error", err)
		return producer, nil
	}

	host, _ := os.Hostname()
	name := "api-ws-" + sanitizeConsumerName(host)
	err = consumer.ConsumeAssetEvents(ctx, name, func(ctx context.Context, ev models.AssetEvent) error {
		hub.BroadcastAssetEvent(ev)
		return nil
	})
	if err != nil {
		slog.Warn("start asset event consumer", "error", err)
	}
	return producer, consumer
}

// sanitizeConsumerName keeps characters JetStream accepts in durable names.
func sanitizeConsumerName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "local"
	}
	return string(out)
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
