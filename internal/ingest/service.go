package ingest

import (
	"context"
	"log"
	"time"

	"tremor-monitor-backend/config"
	"tremor-monitor-backend/internal/analysis"
	"tremor-monitor-backend/internal/model"
	"tremor-monitor-backend/internal/store"
)

// Result summarizes one sample submission.
type Result struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// Service is the sample ingest pipeline: it validates incoming samples,
// resolves the device's active session, buffers samples into windows, and on
// window close extracts features, classifies them and hands the record to
// the persist pool.
type Service struct {
	cfg        *config.Config
	store      store.Store
	windower   *analysis.Windower
	extractor  *analysis.Extractor
	classifier *analysis.Classifier
	pool       *PersistPool

	now func() time.Time
}

// NewService creates and wires the ingest pipeline.
func NewService(cfg *config.Config, s store.Store) *Service {
	return &Service{
		cfg:        cfg,
		store:      s,
		windower:   analysis.NewWindower(cfg.Analysis),
		extractor:  analysis.NewExtractor(cfg.Analysis),
		classifier: analysis.NewClassifier(cfg.Analysis.Scoring),
		pool:       NewPersistPool(cfg.Analysis.PersistWorkers, cfg.Analysis.PersistMaxAttempts, s),
		now:        time.Now,
	}
}

// Submit ingests a batch of raw samples from a bound device. It returns
// store.ErrNoActiveSession when the device has no binding (the API surfaces
// this as DeviceNotBound) and store.ErrDeviceNotFound for unknown devices.
// Individual malformed samples are dropped and counted, never fatal.
func (s *Service) Submit(ctx context.Context, deviceID string, batteryLevel int, samples []analysis.Sample) (Result, error) {
	if _, err := s.store.GetActiveSession(ctx, deviceID); err != nil {
		if err == store.ErrNoActiveSession {
			// Distinguish an unbound device from an unknown one.
			if _, devErr := s.store.GetDevice(ctx, deviceID); devErr != nil {
				return Result{}, devErr
			}
		}
		return Result{}, err
	}

	var res Result
	for _, sample := range samples {
		if !sample.Valid(s.cfg.Analysis.MaxAxisValue) {
			res.Dropped++
			continue
		}
		if s.windower.Add(deviceID, sample) {
			res.Accepted++
		} else {
			res.Dropped++ // duplicate or behind the finalized frontier
		}
	}
	if res.Dropped > 0 {
		log.Printf("device %s: dropped %d of %d samples (invalid, duplicate or late)",
			deviceID, res.Dropped, len(samples))
	}

	if err := s.store.TouchDevice(ctx, deviceID, batteryLevel, s.now().UTC()); err != nil {
		log.Printf("failed to update last_seen for device %s: %v", deviceID, err)
	}
	return res, nil
}

// Run drives the window flusher until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Println("Starting ingest flusher...")
	s.pool.Start(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ingest flusher shutting down.")
			return
		case <-ticker.C:
			s.FlushDue(ctx, s.now().UTC())
		}
	}
}

// StartWorkers launches the persist workers without the timer loop, for
// callers that drive FlushDue themselves.
func (s *Service) StartWorkers(ctx context.Context) {
	s.pool.Start(ctx)
}

// FlushDue closes every window whose grace period has elapsed and dispatches
// the resulting analysis records. Exported so tests can drive window closes
// deterministically.
func (s *Service) FlushDue(ctx context.Context, now time.Time) {
	for _, win := range s.windower.CloseDue(now) {
		s.processWindow(ctx, win)
	}
}

func (s *Service) processWindow(ctx context.Context, win analysis.ClosedWindow) {
	if len(win.Samples) < s.cfg.Analysis.MinSamples {
		log.Printf("device %s: discarding window %s..%s with %d samples (minimum %d)",
			win.DeviceID, win.Start.Format(time.RFC3339), win.End.Format(time.RFC3339),
			len(win.Samples), s.cfg.Analysis.MinSamples)
		return
	}

	// Attribution is fixed at window close: the patient bound right now owns
	// this record, and a later rebinding of the device does not change it.
	session, err := s.store.GetActiveSession(ctx, win.DeviceID)
	if err != nil {
		log.Printf("device %s: discarding window ending %s, no active session at close: %v",
			win.DeviceID, win.End.Format(time.RFC3339), err)
		return
	}

	features := s.extractor.Extract(win.Samples, win.Start, win.End)
	index := s.classifier.Score(features)

	record := &model.AnalysisRecord{
		PatientID:         session.PatientID,
		DeviceID:          win.DeviceID,
		SessionID:         session.ID,
		WindowStart:       win.Start,
		WindowEnd:         win.End,
		SampleCount:       features.SampleCount,
		SamplingRate:      features.SamplingRate,
		RMS:               features.RMS,
		DominantFrequency: features.DominantFrequency,
		TremorPower:       features.TremorPower,
		TotalPower:        features.TotalPower,
		TremorIndex:       index,
		IsParkinsonian:    s.classifier.IsParkinsonian(features, index),
		SignalQuality:     features.SignalQuality,
		ExpiresAt:         win.End.Add(s.cfg.Retention.AnalysisTTL),
	}
	s.pool.Dispatch(record)
}

// DropDeviceBuffers discards buffered windows for a device. Called when its
// session ends so partial windows cannot be attributed to a later binding.
func (s *Service) DropDeviceBuffers(deviceID string) {
	s.windower.Drop(deviceID)
}
