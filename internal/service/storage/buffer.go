package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/config"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/model"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
)

const (
	// ImageBufferLimit limits how many snapshots per camera are buffered before flushing.
	ImageBufferLimit = 10
	// ImageBufferFlushInterval defines how often (seconds) buffered snapshots are flushed to disk.
	ImageBufferFlushInterval = 30

	timestampLayout = "2006-01-02_15-04-05.000"
)

// Snapshot is an annotated JPEG waiting to be written, with the detections drawn on it.
type Snapshot struct {
	Camera     string
	Timestamp  time.Time
	Detections []model.Detection
	Data       []byte
}

// BufferService buffers plate snapshots in memory and periodically flushes them to disk.
type BufferService struct {
	imagesDir     string
	limit         int
	flushInterval time.Duration
	snapshots     []Snapshot
	bufferCount   map[string]int
	mu            sync.Mutex
	logger        *logger.Logger
	sightingRepo  repository.SightingRepository
}

// NewBufferService creates a BufferService writing to the configured image directory.
// sightingRepo may be nil, in which case only files are written.
func NewBufferService(config *config.Config, logger *logger.Logger, sightingRepo repository.SightingRepository) *BufferService {
	limit := config.ImageBufferLimit
	if limit <= 0 {
		limit = ImageBufferLimit
	}
	interval := config.ImageBufferFlushInterval
	if interval <= 0 {
		interval = ImageBufferFlushInterval
	}
	return &BufferService{
		imagesDir:     config.ImageDirectory,
		limit:         limit,
		flushInterval: time.Duration(interval) * time.Second,
		bufferCount:   make(map[string]int),
		logger:        logger,
		sightingRepo:  sightingRepo,
	}
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-ctx.Done():
			s.Flush()
			return
		}
	}
}

// Add queues a snapshot unless the camera already filled its share of the buffer.
func (s *BufferService) Add(snapshot Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[snapshot.Camera] >= s.limit {
		return false
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}
	s.snapshots = append(s.snapshots, snapshot)
	s.bufferCount[snapshot.Camera]++
	s.logger.Info("Buffer size for camera %s: %d/%d", snapshot.Camera, s.bufferCount[snapshot.Camera], s.limit)
	return true
}

// Pending returns how many snapshots wait for the next flush.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// Flush writes buffered snapshots to disk, records one sighting per plate
// reading and resets the buffer. It returns the number of files written.
func (s *BufferService) Flush() int {
	s.mu.Lock()
	snapshots := s.snapshots
	s.snapshots = nil
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(snapshots) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	saved := 0
	var sightings []model.Sighting
	for _, snap := range snapshots {
		filename := snapshotFilename(snap)
		if err := os.WriteFile(filepath.Join(s.imagesDir, filename), snap.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}
		saved++

		for _, det := range snap.Detections {
			if !det.HasPlate() {
				continue
			}
			sightings = append(sightings, model.Sighting{
				Plate:      det.PlateText,
				Camera:     snap.Camera,
				Label:      det.Label,
				Confidence: det.Confidence,
				Filename:   filename,
				Timestamp:  snap.Timestamp,
			})
		}
	}

	if s.sightingRepo != nil && len(sightings) > 0 {
		if err := s.sightingRepo.InsertBatch(sightings); err != nil {
			s.logger.Error("Error saving sightings to database: %v", err)
		}
	}

	s.logger.Info("Flushed %d snapshots to disk", saved)
	return saved
}

// snapshotFilename builds "<time>_<camera>_<plates>.jpg".
func snapshotFilename(snap Snapshot) string {
	var plates []string
	for _, det := range snap.Detections {
		if det.HasPlate() {
			plates = append(plates, sanitize(det.PlateText))
		}
	}
	if len(plates) == 0 {
		plates = append(plates, "unread")
	}
	return fmt.Sprintf("%s_%s_%s.jpg", snap.Timestamp.Format(timestampLayout), sanitize(snap.Camera), strings.Join(plates, "-"))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			return r
		}
		return '_'
	}, s)
}

// ParseSnapshotFilename recovers the time, camera and plates from a name built by Flush.
// Plates read as "unread" yield no plates.
func ParseSnapshotFilename(name string) (time.Time, string, []string, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if len(base) < len(timestampLayout)+2 || base[len(timestampLayout)] != '_' {
		return time.Time{}, "", nil, fmt.Errorf("invalid snapshot filename: %s", name)
	}

	timestamp, err := time.ParseInLocation(timestampLayout, base[:len(timestampLayout)], time.Local)
	if err != nil {
		return time.Time{}, "", nil, fmt.Errorf("invalid snapshot timestamp in %s: %w", name, err)
	}

	rest := base[len(timestampLayout)+1:]
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return time.Time{}, "", nil, fmt.Errorf("invalid snapshot filename: %s", name)
	}
	camera, platePart := rest[:i], rest[i+1:]
	if platePart == "unread" {
		return timestamp, camera, nil, nil
	}
	return timestamp, camera, strings.Split(platePart, "-"), nil
}
