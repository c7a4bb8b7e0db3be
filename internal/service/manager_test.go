package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/config"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ai"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/ocr"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/pipeline"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service/storage"
	"gopkg.in/guregu/null.v4"
)

type fakeEntries struct {
	mu       sync.Mutex
	entered  []string
	fail     bool
	pending  []model.CarEntry
	nextID   int64
	enterHit chan string
}

func (f *fakeEntries) Enter(ctx context.Context, plate string) (*model.CarEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enterHit != nil {
		defer func() { f.enterHit <- plate }()
	}
	if f.fail {
		return nil, errors.New("backend down")
	}
	f.nextID++
	f.entered = append(f.entered, plate)
	entry := model.CarEntry{ID: f.nextID, Plate: plate, EnteredAt: time.Now()}
	f.pending = append(f.pending, entry)
	return &entry, nil
}

func (f *fakeEntries) Exit(ctx context.Context) (*model.CarEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, repository.ErrNoOpenEntry
	}
	entry := f.pending[0]
	f.pending = f.pending[1:]
	entry.ExitedAt = null.TimeFrom(time.Now())
	return &entry, nil
}

func (f *fakeEntries) Pending(ctx context.Context) ([]model.CarEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.CarEntry(nil), f.pending...), nil
}

func (f *fakeEntries) Recent(ctx context.Context, limit int) ([]model.CarEntry, error) {
	return f.Pending(ctx)
}

func (f *fakeEntries) enteredPlates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.entered...)
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

func TestRecordEntry_DeduplicatesAndReleasesOnFailure(t *testing.T) {
	entries := &fakeEntries{}
	m := NewManager(Options{Entries: entries}, testLogger())
	ctx := context.Background()

	if _, err := m.RecordEntry(ctx, "ab-12 cd"); err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}
	if _, err := m.RecordEntry(ctx, "AB12CD"); !errors.Is(err, ErrAlreadyRecorded) {
		t.Errorf("duplicate err = %v, want ErrAlreadyRecorded", err)
	}
	if got := entries.enteredPlates(); len(got) != 1 || got[0] != "AB12CD" {
		t.Errorf("entered = %v", got)
	}

	entries.fail = true
	if _, err := m.RecordEntry(ctx, "XY99ZZ"); err == nil {
		t.Fatal("expected submission failure")
	}
	if m.IsRecorded("XY99ZZ") {
		t.Error("failed submission must release the plate")
	}

	entries.fail = false
	if _, err := m.RecordEntry(ctx, "XY99ZZ"); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestRecordExit_ReleasesPlate(t *testing.T) {
	entries := &fakeEntries{}
	m := NewManager(Options{Entries: entries}, testLogger())
	ctx := context.Background()

	m.RecordEntry(ctx, "AB12CD")
	m.RecordEntry(ctx, "EF34GH")

	exited, err := m.RecordExit(ctx)
	if err != nil {
		t.Fatalf("RecordExit: %v", err)
	}
	if exited.Plate != "AB12CD" {
		t.Errorf("exited %q, want the first entry", exited.Plate)
	}
	if m.IsRecorded("AB12CD") || !m.IsRecorded("EF34GH") {
		t.Error("only the exited plate should be released")
	}

	m.RecordExit(ctx)
	if _, err := m.RecordExit(ctx); !errors.Is(err, repository.ErrNoOpenEntry) {
		t.Errorf("err = %v, want ErrNoOpenEntry", err)
	}
}

func TestPublish_AutoRecordsPlateLikeTexts(t *testing.T) {
	entries := &fakeEntries{enterHit: make(chan string, 4)}
	m := NewManager(Options{Entries: entries, AutoRecord: true}, testLogger())

	result := pipeline.Result{
		Frame: &model.Frame{Camera: "gate"},
		Detections: []model.Detection{
			{Label: "car", PlateText: "AB12CD"},
			{Label: "car", PlateText: "HELLO"},
			{Label: "truck"},
		},
	}
	m.publish(result)
	m.publish(result)

	select {
	case plate := <-entries.enterHit:
		if plate != "AB12CD" {
			t.Errorf("submitted %q", plate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("plate was not submitted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := entries.enteredPlates(); len(got) != 1 {
		t.Errorf("entered = %v, want one submission", got)
	}
	if plate, _ := m.LastPlate(); plate != "HELLO" {
		t.Errorf("last plate = %q", plate)
	}
}

func TestStop_RejectsLateSubmissions(t *testing.T) {
	entries := &fakeEntries{enterHit: make(chan string, 4)}
	m := NewManager(Options{Entries: entries, AutoRecord: true}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// A frame still in flight after a timed-out shutdown publishes late.
	m.publish(pipeline.Result{
		Frame:      &model.Frame{Camera: "gate"},
		Detections: []model.Detection{{Label: "car", PlateText: "AB12CD"}},
	})

	select {
	case plate := <-entries.enterHit:
		t.Fatalf("plate %q submitted after Stop", plate)
	case <-time.After(100 * time.Millisecond):
	}
	if m.IsRecorded("AB12CD") {
		t.Error("plate should not be claimed after Stop")
	}
}

type fakeBackend struct {
	output model.Tensor
}

func (b *fakeBackend) Forward(ctx context.Context, input model.Tensor) (model.Tensor, error) {
	return b.output, nil
}

func (b *fakeBackend) Close() error { return nil }

type fakeEngine struct{}

func (fakeEngine) Recognize(ctx context.Context, frame *model.Frame, region model.Box) ([]model.OCRCandidate, error) {
	return []model.OCRCandidate{{Text: "AB12CD", Confidence: 0.8}}, nil
}

func carOutput() model.Tensor {
	const channels, n = 84, 10
	data := make([]float32, channels*n)
	data[0*n] = 320
	data[1*n] = 320
	data[2*n] = 200
	data[3*n] = 200
	data[(4+2)*n] = 0.9
	return model.Tensor{Data: data, Shape: []int{1, channels, n}}
}

func TestHandleCameraImage_EndToEnd(t *testing.T) {
	order, _ := ai.ParseChannelOrder("RGB")
	p := pipeline.New(pipeline.Components{
		Preprocessor: ai.NewPreprocessor(16, order),
		Backend:      &fakeBackend{output: carOutput()},
		Decoder:      ai.NewDecoder(640, 80, ai.DefaultConfidenceThreshold, ai.VehicleClasses),
		IOUThreshold: ai.DefaultIOUThreshold,
		OCR:          ocr.NewOrchestrator(fakeEngine{}, ocr.NewRegionSelector(0.5), ocr.DefaultMinConfidence, 2, testLogger()),
	}, testLogger())

	imageDir := filepath.Join(t.TempDir(), "images")
	buffer := storage.NewBufferService(&config.Config{ImageDirectory: imageDir}, testLogger(), nil)
	entries := &fakeEntries{enterHit: make(chan string, 1)}

	m := NewManager(Options{
		Pipeline: p,
		Entries:  entries,
		Buffer:   buffer,
		DecodeFrame: func(image []byte, camera string) (*model.Frame, error) {
			return model.NewFrame(make([]byte, 8*8*3), 8, 8, model.PixelBGR, camera), nil
		},
		Annotate: func(frame *model.Frame, detections []model.Detection) ([]byte, error) {
			return []byte("annotated"), nil
		},
		ProcessingInterval: 2,
		AutoRecord:         true,
	}, testLogger())

	if !m.Status().Ready {
		t.Fatal("manager should be ready with a loaded backend")
	}

	m.HandleCameraImage([]byte{0xff, 0xd8, 0xff, 0xd9}, "gate")
	m.HandleCameraImage([]byte{0xff, 0xd8, 0xff, 0xd9}, "gate")

	select {
	case plate := <-entries.enterHit:
		if plate != "AB12CD" {
			t.Errorf("submitted %q", plate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not submit the plate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	status := m.Status()
	if status.Frames.Received != 2 || status.Frames.Processed != 1 {
		t.Errorf("frames = %+v", status.Frames)
	}
	if status.LastPlate != "AB12CD" || len(status.RecordedPlates) != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestNotReadyManagerIgnoresFrames(t *testing.T) {
	p := pipeline.New(pipeline.Components{LoadErr: ai.ErrModelLoad}, testLogger())
	m := NewManager(Options{Pipeline: p}, testLogger())

	if m.HandleFrame(model.NewFrame(make([]byte, 12), 2, 2, model.PixelRGB, "gate")) {
		t.Error("frame admitted without a ready model")
	}
	status := m.Status()
	if status.Ready || status.LoadError == "" {
		t.Errorf("status = %+v", status)
	}
}
