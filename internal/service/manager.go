package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/pipeline"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/session"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/storage"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/websocket"
)

const submitTimeout = 10 * time.Second

// FrameDecoder turns an encoded camera image into a raw frame.
type FrameDecoder func(image []byte, camera string) (*model.Frame, error)

// Annotator draws detections onto a frame and returns an encoded image.
type Annotator func(frame *model.Frame, detections []model.Detection) ([]byte, error)

// Options wires the Manager. Buffer, Hub and Annotate are optional.
type Options struct {
	Pipeline           *pipeline.Pipeline
	Entries            repository.EntryRepository
	Buffer             *storage.BufferService
	Hub                *websocket.HubService
	DecodeFrame        FrameDecoder
	Annotate           Annotator
	ProcessingInterval int
	AutoRecord         bool
}

// Manager feeds camera frames into the pipeline and acts on its results:
// viewer events, snapshots and plate submission to the recording API.
type Manager struct {
	pipeline    *pipeline.Pipeline
	scheduler   *pipeline.Scheduler
	session     *session.State
	entries     repository.EntryRepository
	buffer      *storage.BufferService
	hub         *websocket.HubService
	decodeFrame FrameDecoder
	annotate    Annotator
	autoRecord  bool
	logger      *logger.Logger

	mu          sync.RWMutex
	lastPlate   string
	lastPlateAt time.Time
	stopped     bool

	submissions sync.WaitGroup
}

// Status is the externally visible state of the service.
type Status struct {
	Ready          bool                    `json:"ready"`
	LoadError      string                  `json:"load_error,omitempty"`
	Stage          string                  `json:"stage"`
	Frames         pipeline.SchedulerStats `json:"frames"`
	RecordedPlates []string                `json:"recorded_plates"`
	LastPlate      string                  `json:"last_plate,omitempty"`
	LastPlateAt    *time.Time              `json:"last_plate_at,omitempty"`
	Viewers        int                     `json:"viewers"`
	Buffered       int                     `json:"buffered_snapshots"`
	AutoRecord     bool                    `json:"auto_record"`
}

func NewManager(opts Options, logger *logger.Logger) *Manager {
	m := &Manager{
		pipeline:    opts.Pipeline,
		session:     session.NewState(),
		entries:     opts.Entries,
		buffer:      opts.Buffer,
		hub:         opts.Hub,
		decodeFrame: opts.DecodeFrame,
		annotate:    opts.Annotate,
		autoRecord:  opts.AutoRecord,
		logger:      logger,
	}

	if m.pipeline != nil && m.pipeline.Ready() {
		m.scheduler = pipeline.NewScheduler(opts.ProcessingInterval, m.runFrame, logger)
		m.logger.Info("🎬 Manager started - processing every %d frame(s)", max(opts.ProcessingInterval, 1))
	} else {
		m.logger.Error("Detection disabled, model not ready: %v", m.loadError())
	}
	return m
}

func (m *Manager) loadError() error {
	if m.pipeline == nil {
		return errors.New("no pipeline configured")
	}
	return m.pipeline.LoadError()
}

// HandleCameraImage forwards the raw image to viewers and offers it to the
// scheduler. Decoding happens only for admitted frames.
func (m *Manager) HandleCameraImage(image []byte, camera string) {
	if m.hub != nil {
		m.hub.SendFrame(image, camera)
	}
	m.HandleFrame(&model.Frame{Camera: camera, Timestamp: time.Now(), Encoded: image})
}

// HandleFrame offers a frame to the scheduler and reports whether it was admitted.
func (m *Manager) HandleFrame(frame *model.Frame) bool {
	if m.scheduler == nil {
		return false
	}
	return m.scheduler.OnFrame(frame)
}

func (m *Manager) runFrame(ctx context.Context, frame *model.Frame) {
	if frame.Data == nil && frame.Encoded != nil {
		if m.decodeFrame == nil {
			m.logger.Error("Camera %s: no frame decoder configured", frame.Camera)
			return
		}
		decoded, err := m.decodeFrame(frame.Encoded, frame.Camera)
		if err != nil {
			m.logger.Warning("Camera %s: could not decode frame: %v", frame.Camera, err)
			return
		}
		decoded.Timestamp = frame.Timestamp
		frame = decoded
	}
	m.pipeline.Run(ctx, frame, m.publish)
}

// publish consumes the detections of one processed frame.
func (m *Manager) publish(result pipeline.Result) {
	if len(result.Detections) == 0 {
		return
	}

	camera := result.Frame.Camera
	m.logger.Info("📹 Camera %s: %d vehicle(s) in %v", camera, len(result.Detections), result.Duration.Round(time.Millisecond))

	if m.hub != nil {
		m.hub.Publish(websocket.Event{Type: websocket.EventDetections, Camera: camera, Detections: result.Detections})
	}

	hasPlate := false
	for _, det := range result.Detections {
		if !det.HasPlate() {
			continue
		}
		hasPlate = true
		m.setLastPlate(det.PlateText)

		if m.autoRecord && ocr.LooksLikePlate(det.PlateText) {
			m.submitAsync(det.PlateText)
		}
	}

	if hasPlate {
		m.saveSnapshot(result)
	}
}

func (m *Manager) saveSnapshot(result pipeline.Result) {
	if m.buffer == nil || m.annotate == nil {
		return
	}
	data, err := m.annotate(result.Frame, result.Detections)
	if err != nil {
		m.logger.Error("Failed to draw detections: %v", err)
		return
	}
	m.buffer.Add(storage.Snapshot{
		Camera:     result.Frame.Camera,
		Timestamp:  result.Frame.Timestamp,
		Detections: result.Detections,
		Data:       data,
	})
}

func (m *Manager) setLastPlate(plate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPlate = plate
	m.lastPlateAt = time.Now()
}

// LastPlate returns the most recently published plate reading.
func (m *Manager) LastPlate() (string, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPlate, m.lastPlateAt
}

// submitAsync claims plate in the session right away and submits it in the background.
func (m *Manager) submitAsync(text string) {
	plate := CanonicalPlate(text)
	if m.entries == nil {
		return
	}

	// Add must not race the Wait in Stop.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		m.logger.Warning("Manager stopped, not recording %s", plate)
		return
	}
	if !m.session.TryRecord(plate) {
		return
	}

	m.submissions.Add(1)
	go func() {
		defer m.submissions.Done()
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		m.submit(ctx, plate)
	}()
}

// submit sends a claimed plate and releases it again when the API refuses it.
func (m *Manager) submit(ctx context.Context, plate string) (*model.CarEntry, error) {
	entry, err := m.entries.Enter(ctx, plate)
	if err != nil {
		m.session.Release(plate)
		m.logger.Error("Failed to record entry for %s: %v", plate, err)
		return nil, err
	}

	m.logger.Info("🚗 Recorded entry %d for %s", entry.ID, entry.Plate)
	if m.hub != nil {
		m.hub.Publish(websocket.Event{Type: websocket.EventEntry, Entry: entry})
	}
	return entry, nil
}

// ErrAlreadyRecorded is returned by RecordEntry for a plate submitted earlier this session.
var ErrAlreadyRecorded = errors.New("plate already recorded this session")

// RecordEntry submits plate unless it was already recorded this session.
func (m *Manager) RecordEntry(ctx context.Context, text string) (*model.CarEntry, error) {
	if m.entries == nil {
		return nil, errors.New("no recording API configured")
	}
	plate := CanonicalPlate(text)
	if plate == "" {
		return nil, repository.ErrEmptyPlate
	}
	if !m.session.TryRecord(plate) {
		return nil, fmt.Errorf("%s: %w", plate, ErrAlreadyRecorded)
	}
	return m.submit(ctx, plate)
}

// RecordExit closes the longest-waiting entry and lets its plate be recorded again.
func (m *Manager) RecordExit(ctx context.Context) (*model.CarEntry, error) {
	if m.entries == nil {
		return nil, errors.New("no recording API configured")
	}
	entry, err := m.entries.Exit(ctx)
	if err != nil {
		return nil, err
	}

	m.session.Release(CanonicalPlate(entry.Plate))
	m.logger.Info("🏁 Recorded exit %d for %s", entry.ID, entry.Plate)
	if m.hub != nil {
		m.hub.Publish(websocket.Event{Type: websocket.EventExit, Entry: entry})
	}
	return entry, nil
}

func (m *Manager) Pending(ctx context.Context) ([]model.CarEntry, error) {
	if m.entries == nil {
		return nil, errors.New("no recording API configured")
	}
	return m.entries.Pending(ctx)
}

func (m *Manager) Recent(ctx context.Context, limit int) ([]model.CarEntry, error) {
	if m.entries == nil {
		return nil, errors.New("no recording API configured")
	}
	return m.entries.Recent(ctx, limit)
}

// ResetSession forgets every plate recorded so far.
func (m *Manager) ResetSession() {
	m.session.Reset()
	m.logger.Info("Session reset")
}

// IsRecorded reports whether the plate was submitted this session.
func (m *Manager) IsRecorded(text string) bool {
	return m.session.IsRecorded(CanonicalPlate(text))
}

func (m *Manager) Status() Status {
	status := Status{
		Ready:          m.scheduler != nil,
		Stage:          pipeline.StageIdle.String(),
		RecordedPlates: m.session.Plates(),
		AutoRecord:     m.autoRecord,
	}
	if err := m.loadError(); err != nil {
		status.LoadError = err.Error()
	}
	if m.pipeline != nil {
		status.Stage = m.pipeline.Stage().String()
	}
	if m.scheduler != nil {
		status.Frames = m.scheduler.Stats()
	}
	if plate, at := m.LastPlate(); plate != "" {
		status.LastPlate = plate
		status.LastPlateAt = &at
	}
	if m.hub != nil {
		status.Viewers = m.hub.GetClientCount()
	}
	if m.buffer != nil {
		status.Buffered = m.buffer.Pending()
	}
	return status
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hub
}

// Stop halts the scheduler, waits for in-flight submissions and flushes snapshots.
func (m *Manager) Stop(ctx context.Context) error {
	var err error
	if m.scheduler != nil {
		err = m.scheduler.Shutdown(ctx)
	}

	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.submissions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}

	if m.buffer != nil {
		m.buffer.Flush()
	}
	m.logger.Info("🛑 Manager stopped")
	return err
}

// CanonicalPlate upper-cases text and keeps only letters and digits.
func CanonicalPlate(text string) string {
	return strings.ToUpper(ocr.Normalize(text))
}
