package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/config"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/decision"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/metrics"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/repository"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/session"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/severity"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/spray"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/weather"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/pkg/utils"
)

var (
	ErrWeatherNotLoaded = errors.New("please fetch live weather first")
	ErrNoAnalysis       = errors.New("no analysis in this session")
	ErrNoSprayNeeded    = errors.New("no spraying needed for the last analysis")
)

type AnalysisService interface {
	FetchWeather(ctx context.Context, st *session.State) (weather.Result, error)
	Analyze(ctx context.Context, st *session.State, fileBytes []byte, filename string) (*domain.Analysis, error)
	StartSpray(ctx context.Context, st *session.State) (<-chan spray.Tick, *domain.Analysis, error)
}

type Deps struct {
	Weather   weather.Provider
	Overlays  repository.OverlayRepository // nil disables export
	Publisher spray.Publisher              // nil disables spray events
	Metrics   *metrics.Metrics
}

type analysisService struct {
	weather   weather.Provider
	overlays  repository.OverlayRepository
	publisher spray.Publisher
	metrics   *metrics.Metrics
	estimator *severity.Estimator
	engine    *decision.Engine
	proc      *utils.ImageProcessor
	cfg       *config.Config
	log       *zap.Logger
}

func NewAnalysisService(deps Deps, cfg *config.Config, log *zap.Logger) AnalysisService {
	pub := deps.Publisher
	if pub == nil {
		pub = spray.NopPublisher{}
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &analysisService{
		weather:   deps.Weather,
		overlays:  deps.Overlays,
		publisher: pub,
		metrics:   m,
		estimator: severity.NewEstimator(severity.DefaultRanges()),
		engine:    decision.NewEngine(decision.DefaultRules()),
		proc:      utils.NewImageProcessor(cfg.App.AllowedFormats, cfg.App.MaxPixels, log),
		cfg:       cfg,
		log:       log,
	}
}

// FetchWeather asks the provider for the configured location and caches the
// sample in st only when it is available.
func (s *analysisService) FetchWeather(ctx context.Context, st *session.State) (weather.Result, error) {
	res, err := s.weather.Fetch(ctx, s.cfg.Weather.Location)
	if err != nil {
		s.metrics.WeatherFetch.WithLabelValues("error").Inc()
		return weather.Result{}, fmt.Errorf("fetch weather: %w", err)
	}

	sample, ok := res.Sample()
	if !ok {
		s.metrics.WeatherFetch.WithLabelValues("unavailable").Inc()
		return res, nil
	}

	st.SetWeather(sample)
	s.metrics.WeatherFetch.WithLabelValues("available").Inc()
	s.log.Info("Session weather updated",
		zap.String("session", st.ID),
		zap.String("condition", sample.Condition))
	return res, nil
}

func (s *analysisService) Analyze(ctx context.Context, st *session.State, fileBytes []byte, filename string) (*domain.Analysis, error) {
	w, ok := st.Weather()
	if !ok {
		return nil, ErrWeatherNotLoaded
	}
	if err := s.proc.CheckExtension(filename); err != nil {
		return nil, err
	}

	img, format, err := s.proc.Decode(fileBytes)
	if err != nil {
		return nil, err
	}

	est, err := s.estimator.Estimate(img)
	if err != nil {
		return nil, fmt.Errorf("estimate severity: %w", err)
	}
	dec := s.engine.Evaluate(est.Severity, w)

	a := domain.Analysis{
		ID:           uuid.New().String(),
		OriginalName: filename,
		Width:        est.Mask.Width,
		Height:       est.Mask.Height,
		Severity:     est.Severity,
		Label:        severity.Label(est.Severity),
		Health:       domain.HealthFor(est.Severity),
		Decision:     dec,
		ActionColor:  dec.Action.Color(),
		Spray:        dec.ShouldSpray(),
		Weather:      w,
		AnalyzedAt:   time.Now().UTC(),
	}

	overlay := s.proc.Thumbnail(s.proc.RenderOverlay(img, est.Mask), s.cfg.App.PreviewWidth)
	pngBytes, err := s.proc.EncodePNG(overlay)
	if err != nil {
		return nil, err
	}
	a.OverlayDataURL = utils.PNGDataURL(pngBytes)
	a.OverlayKey = s.exportOverlay(ctx, a.ID, pngBytes)

	st.SetLastAnalysis(a)
	s.metrics.Analyses.WithLabelValues(string(dec.Action)).Inc()
	s.metrics.Severity.Observe(est.Severity)

	s.log.Info("Leaf analysed",
		zap.String("id", a.ID),
		zap.String("session", st.ID),
		zap.String("filename", filename),
		zap.String("format", format),
		zap.Float64("severity", a.Severity),
		zap.String("label", string(a.Label)),
		zap.String("action", string(dec.Action)),
		zap.Int("duration_seconds", dec.DurationSeconds))

	return &a, nil
}

// exportOverlay is best effort: a failed upload is logged and the analysis
// is still returned without a key.
func (s *analysisService) exportOverlay(ctx context.Context, id string, pngBytes []byte) string {
	if s.overlays == nil {
		return ""
	}
	key, err := s.overlays.SaveOverlay(ctx, id, pngBytes)
	if err != nil {
		s.metrics.OverlayExport.WithLabelValues("error").Inc()
		s.log.Warn("Overlay export failed", zap.String("id", id), zap.Error(err))
		return ""
	}
	s.metrics.OverlayExport.WithLabelValues("ok").Inc()
	return key
}

// StartSpray starts the countdown for the session's last analysis. The
// returned channel closes when the countdown finishes or ctx is cancelled.
func (s *analysisService) StartSpray(ctx context.Context, st *session.State) (<-chan spray.Tick, *domain.Analysis, error) {
	a, ok := st.LastAnalysis()
	if !ok {
		return nil, nil, ErrNoAnalysis
	}
	if !a.Decision.ShouldSpray() {
		return nil, &a, ErrNoSprayNeeded
	}

	s.publish(ctx, st, a, spray.EventStarted, 0)

	src := spray.Countdown(ctx, a.Decision.DurationSeconds, s.cfg.App.SprayTick)
	out := make(chan spray.Tick)
	go func() {
		defer close(out)
		var last spray.Tick
		for t := range src {
			select {
			case out <- t:
				last = t
			case <-ctx.Done():
			}
		}

		// ctx may already be cancelled; the final event must still go out
		pubCtx := context.WithoutCancel(ctx)
		if last.Done() {
			s.metrics.SprayRuns.WithLabelValues("completed").Inc()
			s.publish(pubCtx, st, a, spray.EventCompleted, last.Elapsed)
			s.log.Info("Spraying completed", zap.String("id", a.ID), zap.Int("seconds", last.Elapsed))
			return
		}
		s.metrics.SprayRuns.WithLabelValues("cancelled").Inc()
		s.publish(pubCtx, st, a, spray.EventCancelled, last.Elapsed)
		s.log.Warn("Spraying cancelled", zap.String("id", a.ID), zap.Int("elapsed", last.Elapsed))
	}()

	return out, &a, nil
}

func (s *analysisService) publish(ctx context.Context, st *session.State, a domain.Analysis, typ spray.EventType, elapsed int) {
	evt := spray.Event{
		Type:            typ,
		SessionID:       st.ID,
		AnalysisID:      a.ID,
		Action:          a.Decision.Action,
		Severity:        a.Severity,
		DurationSeconds: a.Decision.DurationSeconds,
		Elapsed:         elapsed,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("Failed to publish spray event",
			zap.String("type", string(typ)),
			zap.String("id", a.ID),
			zap.Error(err))
	}
}
