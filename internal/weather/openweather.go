package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/config"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
)

var ErrMissingAPIKey = errors.New("missing weather api key")

// owmCurrent mirrors the subset of /data/2.5/weather we read. Pointers tell a
// missing field apart from a zero value.
type owmCurrent struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Message string `json:"message"`
}

type OWMClient struct {
	baseURL string
	apiKey  string
	units   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewOWMClient(cfg config.WeatherConfig, log *zap.Logger) *OWMClient {
	fails := cfg.BreakerFailures
	if fails < 1 {
		fails = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweathermap",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Weather circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &OWMClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		units:   cfg.Units,
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
		log:     log,
	}
}

// Fetch queries current conditions. Only transport and decode failures count
// against the circuit breaker; an unavailable payload is a normal answer.
func (c *OWMClient) Fetch(ctx context.Context, location string) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrMissingAPIKey
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, location)
	})
	if err != nil {
		c.log.Error("Weather request failed",
			zap.String("location", location),
			zap.Error(err))
		return Result{}, err
	}

	r := res.(Result)
	if s, ok := r.Sample(); ok {
		c.log.Info("Weather fetched",
			zap.String("location", location),
			zap.Float64("temperature", s.Temperature),
			zap.Int("humidity", s.Humidity),
			zap.String("condition", s.Condition))
	} else {
		c.log.Warn("Weather unavailable",
			zap.String("location", location),
			zap.String("reason", r.Reason()))
	}
	return r, nil
}

func (c *OWMClient) fetch(ctx context.Context, location string) (Result, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	if c.units != "" {
		q.Set("units", c.units)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("build weather request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return Result{}, fmt.Errorf("weather upstream status %d", resp.StatusCode)
	}

	var out owmCurrent
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{}, fmt.Errorf("decode weather response: %w", err)
	}
	return parse(out, location, resp.StatusCode), nil
}

func parse(out owmCurrent, location string, status int) Result {
	if out.Main == nil {
		reason := out.Message
		if reason == "" {
			reason = fmt.Sprintf("response without main block (status %d)", status)
		}
		return Unavailable(reason)
	}
	if out.Main.Temp == nil || out.Main.Humidity == nil {
		return Unavailable("response without temperature or humidity")
	}
	if len(out.Weather) == 0 || out.Weather[0].Main == "" {
		return Unavailable("response without weather condition")
	}
	return Available(domain.WeatherSample{
		Location:    location,
		Temperature: *out.Main.Temp,
		Humidity:    *out.Main.Humidity,
		Condition:   out.Weather[0].Main,
		FetchedAt:   time.Now().UTC(),
	})
}
