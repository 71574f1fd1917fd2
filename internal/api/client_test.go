package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"songdub/internal/api"
	"songdub/internal/jobs"
)

func TestClientSubmitSendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "song.mp3" || string(data) != "audio" {
			t.Errorf("file %q = %q", header.Filename, data)
		}
		if r.FormValue("language") != "de" || r.FormValue("start") != "1.5" || r.FormValue("end") != "" {
			t.Errorf("fields = %v", r.MultipartForm.Value)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{JobID: "abc"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := api.NewClient(srv.URL, "tok").Submit(context.Background(), path, api.SubmitOptions{Language: "de", Start: 1.5})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "abc" {
		t.Fatalf("id = %q", id)
	}
}

func TestClientDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job x not found", Kind: "not_found", Hint: "check the id"})
	}))
	defer srv.Close()

	_, err := api.NewClient(srv.URL, "").Job(context.Background(), "x")
	if !api.IsNotFound(err) {
		t.Fatalf("err = %v", err)
	}
	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) || reqErr.Hint != "check the id" {
		t.Fatalf("request error = %+v", reqErr)
	}
}

func TestClientAcceptsBareAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.LanguagesResponse{Default: "es"})
	}))
	defer srv.Close()

	resp, err := api.NewClient(srv.Listener.Addr().String(), "").Languages(context.Background())
	if err != nil || resp.Default != "es" {
		t.Fatalf("Languages = %+v, %v", resp, err)
	}
}

func TestClientWaitStopsAtTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		job := jobs.Job{ID: "j1", Status: jobs.StatusMixing, Progress: 88}
		if calls.Add(1) >= 3 {
			job.Status = jobs.StatusDone
			job.Progress = 100
		}
		_ = json.NewEncoder(w).Encode(job)
	}))
	defer srv.Close()

	var seen []int
	job, err := api.NewClient(srv.URL, "").Wait(context.Background(), "j1", time.Millisecond, func(j *jobs.Job) {
		seen = append(seen, j.Progress)
	})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.Status != jobs.StatusDone || len(seen) != 3 {
		t.Fatalf("job = %s after %v", job.Status, seen)
	}
}

func TestFromJobFormatsTimestamps(t *testing.T) {
	job := jobs.New("fr", "a.wav", 0, 0)
	job.CreatedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	dto := api.FromJob(job)
	if dto.CreatedAt != "2025-03-01T12:00:00.000Z" || dto.Status != "queued" {
		t.Fatalf("dto = %+v", dto)
	}
	if got := api.FromJobs(nil); got == nil || len(got) != 0 {
		t.Fatalf("FromJobs(nil) = %#v", got)
	}
}
