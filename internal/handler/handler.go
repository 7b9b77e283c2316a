package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/config"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/service"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/session"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/spray"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/weather"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/pkg/utils"
)

const (
	SessionCookie = "agroaid_session"
	sessionKey    = "session"

	// room for multipart boundaries and part headers on top of the file
	multipartOverhead = 64 << 10
)

type Handler struct {
	service  service.AnalysisService
	sessions *session.Store
	cfg      *config.Config
	log      *zap.Logger
}

func NewHandler(service service.AnalysisService, sessions *session.Store, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

// Session attaches the caller's stored state to the request when its cookie
// names a live session. It never creates one.
func (h *Handler) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(SessionCookie); err == nil {
			if st, ok := h.sessions.Get(id); ok {
				c.Set(sessionKey, st)
			}
		}
		c.Next()
	}
}

func current(c *gin.Context) (*session.State, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	return v.(*session.State), true
}

// FetchWeather is the only route that opens a session: a new one is stored
// and its cookie issued once a sample has been cached in it.
func (h *Handler) FetchWeather(c *gin.Context) {
	st, known := current(c)
	if !known {
		st = session.New()
	}

	res, err := h.service.FetchWeather(c.Request.Context(), st)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, weather.ErrMissingAPIKey) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Weather API not ready yet. Try again later."})
			return
		}
		h.log.Error("Failed to fetch weather", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach weather service"})
		return
	}

	sample, ok := res.Sample()
	if !ok {
		h.log.Warn("Weather unavailable", zap.String("reason", res.Reason()))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Weather API not ready yet. Try again later.",
			"reason": res.Reason(),
		})
		return
	}

	if !known {
		h.sessions.Add(st)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, st.ID, 0, "/", "", false, true)
	}
	c.JSON(http.StatusOK, gin.H{"weather": sample})
}

func (h *Handler) GetWeather(c *gin.Context) {
	st, ok := current(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No weather fetched yet"})
		return
	}
	sample, ok := st.Weather()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No weather fetched yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"weather": sample})
}

func (h *Handler) Analyze(c *gin.Context) {
	st, ok := current(c)
	if !ok {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Please fetch live weather first!"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.App.MaxUploadSize+multipartOverhead)
	file, err := c.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		h.log.Debug("No image in form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}

	if file.Size > h.cfg.App.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.cfg.App.MaxUploadSize+1))
	if err != nil {
		h.log.Error("Failed to read file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	if int64(len(data)) > h.cfg.App.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	analysis, err := h.service.Analyze(c.Request.Context(), st, data, file.Filename)
	switch {
	case errors.Is(err, service.ErrWeatherNotLoaded):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Please fetch live weather first!"})
		return
	case errors.Is(err, utils.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image dimensions too large"})
		return
	case errors.Is(err, utils.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file format. Only JPG, JPEG, PNG allowed"})
		return
	case err != nil:
		h.log.Error("Failed to analyse image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyse image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// StreamSpray runs the spray countdown for the last analysis as server-sent
// events. A client disconnect cancels the run.
func (h *Handler) StreamSpray(c *gin.Context) {
	st, ok := current(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analyse a leaf first"})
		return
	}

	ticks, analysis, err := h.service.StartSpray(c.Request.Context(), st)
	switch {
	case errors.Is(err, service.ErrNoAnalysis):
		c.JSON(http.StatusNotFound, gin.H{"error": "Analyse a leaf first"})
		return
	case errors.Is(err, service.ErrNoSprayNeeded):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "No spraying performed",
			"action": analysis.Decision.Action,
		})
		return
	case err != nil:
		h.log.Error("Failed to start spraying", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start spraying"})
		return
	}

	var last spray.Tick
	c.Stream(func(w io.Writer) bool {
		t, ok := <-ticks
		if !ok {
			c.SSEvent("done", gin.H{"completed": last.Done(), "elapsed": last.Elapsed})
			return false
		}
		last = t
		c.SSEvent("tick", t)
		return true
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) GetUI(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"location": h.cfg.Weather.Location})
}
