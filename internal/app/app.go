package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/config"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/handler"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository/postgres"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository/sqlite"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/route"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ai"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ai/onnx"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ai/opencv"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr/rekognition"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr/tesseract"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/pipeline"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/recorder"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/storage"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/websocket"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	pipeline      *pipeline.Pipeline
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *service.Manager
	closers       []io.Closer
}

func NewApp(ctx context.Context) (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)
	a := &App{config: cfg, logger: log}

	entries, sightings, err := a.openRepositories(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.pipeline = a.buildPipeline(ctx)
	a.hubService = websocket.NewHubService(log)
	if sightings != nil {
		a.bufferService = storage.NewBufferService(cfg, log, sightings)
	}

	a.manager = service.NewManager(service.Options{
		Pipeline:           a.pipeline,
		Entries:            entries,
		Buffer:             a.bufferService,
		Hub:                a.hubService,
		DecodeFrame:        opencv.DecodeFrame,
		Annotate:           opencv.Annotate,
		ProcessingInterval: cfg.ProcessingInterval,
		AutoRecord:         cfg.AutoRecord,
	}, log)

	return a, nil
}

// openRepositories picks where car entries are recorded. Sightings are only
// kept when a local SQLite database is open.
func (a *App) openRepositories(ctx context.Context) (repository.EntryRepository, repository.SightingRepository, error) {
	cfg := a.config

	var sightings repository.SightingRepository
	if cfg.DatabasePath != "" {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		a.closers = append(a.closers, db)
		sightings = sqlite.NewSightingRepository(db)

		if cfg.Recorder != "remote" && cfg.DBDriver != "postgres" {
			a.logger.Info("📒 Recording entries in %s", cfg.DatabasePath)
			return sqlite.NewEntryRepository(db), sightings, nil
		}
	}

	switch {
	case cfg.Recorder == "remote":
		a.logger.Info("📒 Recording entries through %s", cfg.RecorderURL)
		return recorder.NewClient(cfg.RecorderURL, nil), sightings, nil
	case cfg.DBDriver == "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		a.closers = append(a.closers, db)
		a.logger.Info("📒 Recording entries in PostgreSQL")
		return postgres.NewEntryRepository(db), sightings, nil
	default:
		return nil, nil, errors.New("DB_PATH is required for the local recorder")
	}
}

// buildPipeline assembles the detection pipeline. A model that fails to load
// leaves the pipeline not ready instead of stopping the server.
func (a *App) buildPipeline(ctx context.Context) *pipeline.Pipeline {
	cfg := a.config

	order, err := ai.ParseChannelOrder(cfg.ChannelOrder)
	if err != nil {
		a.logger.Warning("Invalid CHANNEL_ORDER %q, using RGB: %v", cfg.ChannelOrder, err)
		order = [3]ai.Channel{ai.ChannelR, ai.ChannelG, ai.ChannelB}
	}

	components := pipeline.Components{
		Preprocessor: a.newPreprocessor(order),
		Decoder:      ai.NewDecoder(cfg.ModelInputSize, cfg.ModelNumClasses, cfg.ConfidenceThreshold, cfg.AllowedClasses),
		IOUThreshold: cfg.IOUThreshold,
	}

	backend, err := a.loadBackend()
	if err != nil {
		a.logger.Error("Failed to load model %s: %v", cfg.ModelPath, err)
		components.LoadErr = err
	} else {
		components.Backend = backend
	}

	engine, err := a.loadOCREngine(ctx)
	if err != nil {
		a.logger.Warning("OCR disabled: %v", err)
	} else {
		components.OCR = ocr.NewOrchestrator(engine, ocr.NewRegionSelector(cfg.PlateRegionFraction),
			cfg.OCRMinConfidence, cfg.OCRWorkers, a.logger)
	}

	return pipeline.New(components, a.logger)
}

func (a *App) newPreprocessor(order [3]ai.Channel) ai.FramePreprocessor {
	if a.config.Preprocessor == "opencv" {
		blob, err := opencv.NewBlobPreprocessor(a.config.ModelInputSize, order)
		if err == nil {
			return blob
		}
		a.logger.Warning("OpenCV preprocessor unavailable, using native: %v", err)
	}
	return ai.NewPreprocessor(a.config.ModelInputSize, order)
}

func (a *App) loadBackend() (ai.Backend, error) {
	cfg := a.config
	switch cfg.InferenceBackend {
	case "onnxruntime":
		return onnx.NewBackend(onnx.Options{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.OnnxLibraryPath,
			InputName:   cfg.ModelInputName,
			OutputName:  cfg.ModelOutputName,
			InputSize:   cfg.ModelInputSize,
			OutputShape: cfg.ModelOutputShape,
		}, a.logger)
	case "opencv", "":
		return opencv.NewNetBackend(cfg.ModelPath, a.logger)
	default:
		return nil, fmt.Errorf("%w: unknown inference backend %q", ai.ErrModelLoad, cfg.InferenceBackend)
	}
}

func (a *App) loadOCREngine(ctx context.Context) (ocr.Engine, error) {
	cfg := a.config
	switch cfg.OCREngine {
	case "rekognition":
		return rekognition.NewEngineFromRegion(ctx, cfg.AWSRegion)
	case "tesseract", "":
		return tesseract.NewEngine(cfg.OCRLanguage, cfg.TessdataPrefix), nil
	case "none":
		return nil, errors.New("OCR_ENGINE is none")
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.OCREngine)
	}
}

// Run serves HTTP and camera traffic until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	// Start background services
	if a.bufferService != nil {
		go a.bufferService.Run(ctx)
	}
	go a.hubService.Run(ctx)
	go handler.UDPCameraHandler(ctx, a.manager, a.logger, a.config)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: route.SetupRoutes(a.manager, a.config, a.logger),
	}

	a.logger.Info("🚀 CarbonLane server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("📷 Cameras: udp://:%d", a.config.CamerasPort)
	a.logger.Info("🤖 AI Model: %s (%s)", a.config.ModelPath, a.config.InferenceBackend)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Error("HTTP shutdown: %v", shutdownErr)
	}
	if stopErr := a.manager.Stop(shutdownCtx); stopErr != nil {
		a.logger.Error("Manager shutdown: %v", stopErr)
	}
	if closeErr := a.pipeline.Close(); closeErr != nil {
		a.logger.Error("Model shutdown: %v", closeErr)
	}
	a.close()
	return err
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("Close: %v", err)
		}
	}
}
