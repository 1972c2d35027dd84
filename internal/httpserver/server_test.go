package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestServer(t *testing.T, sc Scenario) (*Server, http.Handler, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	srv, err := NewServer("", sc, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.now = clock.Now
	srv.startTime = clock.Now()
	return srv, srv.Handler(), clock
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %s: %v", w.Body.String(), err)
	}
	return v
}

func createJob(t *testing.T, h http.Handler, topic string) model.Job {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/generate-mcq-pdf", `{"topic":"`+topic+`","exam_type":"SSC","pdf_format":"text"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	job := decode[model.Job](t, w)
	if job.ID == "" {
		t.Fatal("created job has no id")
	}
	return job
}

func TestCreateAndProgress(t *testing.T) {
	sc := Scenario{TotalLinks: 4, MCQsPerLink: 5, StepInterval: time.Second}
	_, h, clock := newTestServer(t, sc)

	job := createJob(t, h, "Heart")
	if job.Status != model.JobCreated {
		t.Fatalf("status = %s, want created", job.Status)
	}

	tests := []struct {
		advance   time.Duration
		status    model.JobStatus
		processed int
		mcqs      int
	}{
		{0, model.JobRunning, 0, 0},
		{time.Second, model.JobRunning, 1, 5},
		{1500 * time.Millisecond, model.JobRunning, 2, 10},
		{10 * time.Second, model.JobCompleted, 4, 20},
	}
	for _, tt := range tests {
		clock.Advance(tt.advance)
		w := do(t, h, http.MethodGet, "/api/job-status/"+job.ID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("job-status = %d", w.Code)
		}
		got := decode[model.Job](t, w)
		if got.Status != tt.status || got.ProcessedLinks != tt.processed || got.MCQsFound != tt.mcqs {
			t.Fatalf("after %s: got %+v", tt.advance, got)
		}
		if got.TotalLinks != 4 {
			t.Errorf("total_links = %d, want 4", got.TotalLinks)
		}
		if got.ConnectionHealth != model.HealthStable {
			t.Errorf("connection_health = %s, want stable", got.ConnectionHealth)
		}
	}

	w := do(t, h, http.MethodGet, "/api/job-status/"+job.ID, "")
	done := decode[model.Job](t, w)
	if done.PDFURL != "/files/"+job.ID+".pdf" {
		t.Fatalf("pdf_url = %q", done.PDFURL)
	}
}

func TestCreateRejectsBlankTopic(t *testing.T) {
	_, h, _ := newTestServer(t, DefaultScenario())

	for _, body := range []string{`{"topic":"   "}`, `{}`, `not json`} {
		w := do(t, h, http.MethodPost, "/api/generate-mcq-pdf", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}

	w := do(t, h, http.MethodPost, "/api/generate-mcq-pdf", `{"topic":"Heart","pdf_format":"docx"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid format status = %d, want 400", w.Code)
	}
}

func TestJobStatusNotFound(t *testing.T) {
	_, h, _ := newTestServer(t, DefaultScenario())

	w := do(t, h, http.MethodGet, "/api/job-status/does-not-exist", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	body := decode[map[string]string](t, w)
	if body["detail"] != "Job not found" {
		t.Fatalf("detail = %q", body["detail"])
	}
}

func TestFailTopic(t *testing.T) {
	sc := DefaultScenario()
	sc.FailTopics = []string{"qwerty"}
	_, h, clock := newTestServer(t, sc)

	job := createJob(t, h, "QWERTY")
	clock.Advance(sc.StepInterval)

	got := decode[model.Job](t, do(t, h, http.MethodGet, "/api/job-status/"+job.ID, ""))
	if got.Status != model.JobError {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if !strings.Contains(got.Progress, "QWERTY") {
		t.Fatalf("progress = %q", got.Progress)
	}
}

func TestBrowserRestartWindow(t *testing.T) {
	sc := DefaultScenario()
	sc.RestartWindow = 5 * time.Second
	_, h, clock := newTestServer(t, sc)
	job := createJob(t, h, "Heart")

	st := decode[model.BrowserStatus](t, do(t, h, http.MethodGet, "/api/browser-status", ""))
	if st.ConnectionHealth != model.HealthStable || st.BrowserRestartCount != 0 {
		t.Fatalf("initial browser status = %+v", st)
	}

	w := do(t, h, http.MethodPost, "/api/browser-restart", "")
	st = decode[model.BrowserStatus](t, w)
	if st.ConnectionHealth != model.HealthBrowserRestarting || st.BrowserRestartCount != 1 {
		t.Fatalf("after restart = %+v", st)
	}
	if st.BrowserAlive == nil || *st.BrowserAlive {
		t.Fatalf("browser_alive = %v, want false", st.BrowserAlive)
	}

	if w := do(t, h, http.MethodGet, "/api/job-status/"+job.ID, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("job-status during restart = %d, want 503", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/generate-mcq-pdf", `{"topic":"Lungs"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("create during restart = %d, want 503", w.Code)
	}

	clock.Advance(sc.RestartWindow)
	st = decode[model.BrowserStatus](t, do(t, h, http.MethodGet, "/api/browser-status", ""))
	if st.ConnectionHealth != model.HealthStable || st.BrowserRestartCount != 1 || st.LastRestart == "" {
		t.Fatalf("after window = %+v", st)
	}
	got := decode[model.Job](t, do(t, h, http.MethodGet, "/api/job-status/"+job.ID, ""))
	if got.BrowserMonitoring == nil || got.BrowserMonitoring.BrowserRestartCount != 1 {
		t.Fatalf("browser_monitoring = %+v", got.BrowserMonitoring)
	}
}

func TestFileEndpoint(t *testing.T) {
	sc := Scenario{TotalLinks: 1, MCQsPerLink: 2, StepInterval: time.Second}
	_, h, clock := newTestServer(t, sc)
	job := createJob(t, h, "Heart (Anatomy)")

	if w := do(t, h, http.MethodGet, "/files/"+job.ID+".pdf", ""); w.Code != http.StatusNotFound {
		t.Fatalf("file before completion = %d, want 404", w.Code)
	}

	clock.Advance(time.Second)
	w := do(t, h, http.MethodGet, "/files/"+job.ID+".pdf", "")
	if w.Code != http.StatusOK {
		t.Fatalf("file status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content-type = %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "%PDF-1.4") || !strings.HasSuffix(body, "%%EOF\n") {
		t.Fatalf("not a pdf: %q", body)
	}
	if !strings.Contains(body, `Heart \(Anatomy\)`) {
		t.Errorf("topic not escaped in document")
	}

	if w := do(t, h, http.MethodGet, "/files/unknown.pdf", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown file = %d, want 404", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/files/"+job.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing extension = %d, want 404", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, h, _ := newTestServer(t, DefaultScenario())
	createJob(t, h, "Heart")

	w := do(t, h, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	body := decode[map[string]interface{}](t, w)
	if body["status"] != "ok" || body["jobs"] != float64(1) {
		t.Fatalf("health body = %v", body)
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, h, _ := newTestServer(t, DefaultScenario())

	w := do(t, h, http.MethodPost, "/api/health", "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestNewServerRejectsInvalidScenario(t *testing.T) {
	for _, sc := range []Scenario{
		{},
		{TotalLinks: 3, MCQsPerLink: 2},
		{TotalLinks: 3, StepInterval: time.Second, RestartWindow: -time.Second},
	} {
		if srv, err := NewServer("", sc, nil); err == nil || srv != nil {
			t.Errorf("NewServer(%+v) = %v, %v; want error", sc, srv, err)
		}
	}
}

func TestStartStop(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", DefaultScenario(), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
