package daemon_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"songdub/internal/api"
	"songdub/internal/config"
	"songdub/internal/daemon"
	"songdub/internal/jobs"
	"songdub/internal/language"
	"songdub/internal/logging"
	"songdub/internal/pipeline"
	"songdub/internal/testsupport"
)

func testConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithConfig(func(cfg *config.Config) {
		// No key keeps the preflight run offline.
		cfg.Translation.APIKey = ""
		cfg.Paths.PublicBaseURL = ""
	})}, opts...)
	return testsupport.NewConfig(t, opts...)
}

type harness struct {
	cfg    *config.Config
	store  *jobs.Store
	daemon *daemon.Daemon
	client *api.Client
}

func startDaemon(t *testing.T, cfg *config.Config, runner func(jobs.Registry) pipeline.Runner) *harness {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	manager := pipeline.NewManager(cfg, runner(store), logging.NewNop())
	d, err := daemon.New(cfg, store, manager, language.NewSet(cfg.Languages.Voices), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})
	return &harness{
		cfg:    cfg,
		store:  store,
		daemon: d,
		client: api.NewClient(d.Addr(), cfg.Paths.APIToken),
	}
}

func stubPipeline(t *testing.T, cfg *config.Config) func(jobs.Registry) pipeline.Runner {
	return func(registry jobs.Registry) pipeline.Runner {
		stubs := testsupport.StubCollaborators(t,
			jobs.Segment{Start: 0.2, End: 1.4, Text: "la la la"},
		)
		orch, err := pipeline.NewOrchestrator(cfg, registry, stubs.Collaborators(), logging.NewNop())
		if err != nil {
			t.Fatalf("NewOrchestrator: %v", err)
		}
		return orch
	}
}

type parkedRunner struct{}

func (parkedRunner) Run(ctx context.Context, _ *jobs.Job) error {
	<-ctx.Done()
	return ctx.Err()
}

func parked(jobs.Registry) pipeline.Runner { return parkedRunner{} }

func writeSong(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chorus.wav")
	testsupport.WriteBuffer(t, path, testsupport.Phrases(16000,
		[2]float64{0, 0.2},
		[2]float64{196, 1.2},
		[2]float64{0, 0.6},
	))
	return path
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	h := startDaemon(t, cfg, parked)
	ctx := context.Background()

	status, err := h.daemon.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Pipeline.Workers != cfg.Pipeline.MaxConcurrentJobs {
		t.Fatalf("status = %+v", status)
	}
	if len(status.Dependencies) == 0 || len(status.Checks) == 0 {
		t.Fatalf("expected dependency and preflight results: %+v", status)
	}

	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
	other := flock.New(status.LockFilePath)
	if ok, err := other.TryLock(); err != nil || ok {
		t.Fatalf("lock should be held while running (ok=%v err=%v)", ok, err)
	}

	h.daemon.Stop()
	status, _ = h.daemon.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if ok, err := other.TryLock(); err != nil || !ok {
		t.Fatalf("lock should be released after stop (ok=%v err=%v)", ok, err)
	}
	_ = other.Unlock()
}

func TestStartFailsInterruptedJobs(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := jobs.New("es", "old.wav", 0, 0)
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	job.Status = jobs.StatusProxyTTS
	job.Progress = 80
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_ = store.Close()

	h := startDaemon(t, cfg, parked)
	got, err := h.client.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if got.Status != jobs.StatusError || got.Error != jobs.InterruptedReason {
		t.Fatalf("job = %s %q", got.Status, got.Error)
	}
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	cfg := testConfig(t)
	h := startDaemon(t, cfg, stubPipeline(t, cfg))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	id, err := h.client.Submit(ctx, writeSong(t), api.SubmitOptions{Language: "fr"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job, err := h.client.Wait(ctx, id, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.Status != jobs.StatusDone || job.Progress != 100 || job.Language != "fr" {
		t.Fatalf("job = %s %d%% %s: %s", job.Status, job.Progress, job.Language, job.Error)
	}
	if len(job.Results.URLs()) < 3 {
		t.Fatalf("urls = %v", job.Results.URLs())
	}

	resp, err := http.Get("http://" + h.daemon.Addr() + job.Results.FinalMix)
	if err != nil {
		t.Fatalf("GET final mix: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(body, []byte("RIFF")) {
		t.Fatalf("final mix status %d, %d bytes", resp.StatusCode, len(body))
	}

	list, err := h.client.Jobs(ctx)
	if err != nil || len(list) != 1 || list[0].ID != id {
		t.Fatalf("Jobs = %+v, %v", list, err)
	}
}

func TestSubmitValidation(t *testing.T) {
	cfg := testConfig(t)
	h := startDaemon(t, cfg, parked)
	ctx := context.Background()
	song := writeSong(t)

	cases := map[string]api.SubmitOptions{
		"unsupported language": {Language: "tlh"},
		"inverted window":      {Language: "es", Start: 10, End: 2},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.client.Submit(ctx, song, opts)
			var reqErr *api.RequestError
			if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusBadRequest {
				t.Fatalf("err = %v, want 400", err)
			}
			if reqErr.Kind != "validation" {
				t.Fatalf("kind = %q", reqErr.Kind)
			}
		})
	}

	list, err := h.client.Jobs(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("rejected submissions must not create jobs: %+v %v", list, err)
	}
}

func TestSubmitRequiresFile(t *testing.T) {
	cfg := testConfig(t)
	h := startDaemon(t, cfg, parked)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("language", "es")
	_ = form.Close()
	resp, err := http.Post("http://"+h.daemon.Addr()+"/api/jobs", form.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSubmitRejectsOversizedUpload(t *testing.T) {
	cfg := testConfig(t, testsupport.WithConfig(func(cfg *config.Config) {
		cfg.Pipeline.MaxUploadMiB = 1
	}))
	h := startDaemon(t, cfg, parked)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "big.wav")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(bytes.Repeat([]byte{1}, 2<<20))
	_ = form.Close()

	resp, err := http.Post("http://"+h.daemon.Addr()+"/api/jobs", form.FormDataContentType(), bytes.NewReader(body.Bytes()))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	cfg := testConfig(t, testsupport.WithConfig(func(cfg *config.Config) {
		cfg.Pipeline.MaxConcurrentJobs = 1
		cfg.Pipeline.QueueSize = 1
	}))
	h := startDaemon(t, cfg, parked)
	ctx := context.Background()
	song := writeSong(t)

	if _, err := h.client.Submit(ctx, song, api.SubmitOptions{}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := h.client.Status(ctx)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.Pipeline.Active == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first job never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := h.client.Submit(ctx, song, api.SubmitOptions{}); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	_, err := h.client.Submit(ctx, song, api.SubmitOptions{})
	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503", err)
	}

	list, err := h.client.Jobs(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("rejected job should be discarded: %d jobs, %v", len(list), err)
	}
	entries, _ := os.ReadDir(cfg.JobsDir())
	if len(entries) != 2 {
		t.Fatalf("job dirs = %d, want 2", len(entries))
	}
}

func TestUnknownJobIsNotFound(t *testing.T) {
	cfg := testConfig(t)
	h := startDaemon(t, cfg, parked)

	_, err := h.client.Job(context.Background(), jobs.NewID())
	if !api.IsNotFound(err) {
		t.Fatalf("err = %v, want 404", err)
	}
}

func TestFilesRejectUnknownNames(t *testing.T) {
	cfg := testConfig(t)
	h := startDaemon(t, cfg, parked)
	base := "http://" + h.daemon.Addr()
	id := jobs.NewID()
	if err := os.MkdirAll(filepath.Join(cfg.JobsDir(), id), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.JobsDir(), id, "job.log"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		"/files/" + id + "/job.log",
		"/files/" + id + "/..%2F..%2Fjobs.db",
		"/files/not-a-uuid/final_mix.wav",
		"/files/" + id + "/final_mix.wav",
	} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("GET %s = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestBearerTokenGuardsAPI(t *testing.T) {
	cfg := testConfig(t, testsupport.WithAPIToken("s3cret"))
	h := startDaemon(t, cfg, parked)
	ctx := context.Background()

	anonymous := api.NewClient(h.daemon.Addr(), "")
	_, err := anonymous.Status(ctx)
	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
	wrong := api.NewClient(h.daemon.Addr(), "nope")
	if _, err := wrong.Languages(ctx); !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token err = %v", err)
	}
	if _, err := h.client.Status(ctx); err != nil {
		t.Fatalf("authorized Status: %v", err)
	}
}

func TestLanguagesEndpoint(t *testing.T) {
	cfg := testConfig(t)
	h := startDaemon(t, cfg, parked)

	resp, err := h.client.Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages: %v", err)
	}
	if resp.Default != "es" {
		t.Fatalf("default = %q", resp.Default)
	}
	var codes []string
	for _, info := range resp.Languages {
		codes = append(codes, info.Code)
		if info.Name == "" || info.Voice == "" {
			t.Fatalf("incomplete language info: %+v", info)
		}
	}
	if got := strings.Join(codes, ","); got != "de,es,fr" {
		t.Fatalf("codes = %s", got)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	cfg := testConfig(t)
	h := startDaemon(t, cfg, parked)
	url := "http://" + h.daemon.Addr() + "/api/languages"

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Request-ID", "trace-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "trace-42" {
		t.Fatalf("echoed id = %q", got)
	}

	resp, err = http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("generated id = %q, want a uuid", got)
	}
}
