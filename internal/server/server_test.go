package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/config"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/metrics"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/service"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/weather"
)

func fakeOWM(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Kochi" {
			t.Errorf("location = %q", r.URL.Query().Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"main":{"temp":31.4,"humidity":55},"weather":[{"main":"Clear"}],"name":"Kochi"}`)
	}))
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, color.RGBA{R: 150, G: 111, B: 32, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	owm := fakeOWM(t)
	t.Cleanup(owm.Close)

	cfg := &config.Config{
		Weather: config.WeatherConfig{
			APIKey:          "test",
			Location:        "Kochi",
			BaseURL:         owm.URL,
			Units:           "metric",
			Timeout:         time.Second,
			BreakerFailures: 3,
			BreakerOpenFor:  time.Second,
		},
		Session: config.SessionConfig{MaxSessions: 8, IdleTimeout: time.Minute},
		App: config.AppConfig{
			MaxUploadSize:  1 << 20,
			MaxPixels:      1_000_000,
			AllowedFormats: []string{".jpg", ".jpeg", ".png"},
			PreviewWidth:   4,
			SprayTick:      time.Millisecond,
		},
	}

	reg := prometheus.NewRegistry()
	svc := service.NewAnalysisService(service.Deps{
		Weather: weather.NewOWMClient(cfg.Weather, zap.NewNop()),
		Metrics: metrics.New(reg),
	}, cfg, zap.NewNop())

	ts := httptest.NewServer(NewRouter(cfg, zap.NewNop(), svc, reg))
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return ts, &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func postLeaf(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("image", "leaf.png")
	part.Write(leafPNG(t))
	w.Close()

	resp, err := client.Post(url+"/api/analyze", w.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestLeafToSprayFlow(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(page), "Fetch live weather for Kochi") {
		t.Fatalf("index: %d", resp.StatusCode)
	}
	if len(resp.Cookies()) != 0 {
		t.Fatal("index must not open a session")
	}
	for _, want := range []string{`fetch("/api/weather")`, "Applying pesticide for"} {
		if !strings.Contains(string(page), want) {
			t.Fatalf("index missing %q", want)
		}
	}

	resp = postLeaf(t, client, ts.URL)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("analyse before weather: %d", resp.StatusCode)
	}

	resp, err = client.Post(ts.URL+"/api/weather", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("weather: %d", resp.StatusCode)
	}

	resp, err = client.Get(ts.URL + "/api/weather")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cached weather after reload: %d", resp.StatusCode)
	}

	resp = postLeaf(t, client, ts.URL)
	var got struct {
		Analysis domain.Analysis `json:"analysis"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got.Analysis.Decision.Action != domain.ActionHeavySpray || got.Analysis.Weather.Condition != "Clear" {
		t.Fatalf("analysis = %+v", got.Analysis)
	}

	resp, err = client.Get(ts.URL + "/api/spray")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var ticks int
	var done string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if line == "event:tick" {
			ticks++
		}
		if line == "event:done" && sc.Scan() {
			done = sc.Text()
		}
	}
	if ticks != 10 {
		t.Fatalf("ticks = %d, want 10", ticks)
	}
	if !strings.Contains(done, `"completed":true`) {
		t.Fatalf("done = %q", done)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Post(ts.URL+"/api/weather", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = client.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `agroaid_weather_fetches_total{outcome="available"} 1`) {
		t.Fatalf("metrics missing weather counter:\n%s", body)
	}
}
