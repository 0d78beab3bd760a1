package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amishk599/jobsift/internal/model"
)

func TestSlackSender_EmptyDigest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackSender(srv.URL, srv.Client(), discardLogger())
	if err := n.Send(context.Background(), model.Digest{}); err != nil {
		t.Errorf("Send(empty) = %v, want nil", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestSlackSender_PayloadFormat(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackSender(srv.URL, srv.Client(), discardLogger())
	job := sampleJob("1", "Backend Engineer", "R&D <Labs>", "be")
	if err := n.Send(context.Background(), sampleDigest(job)); err != nil {
		t.Fatalf("Send() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if len(payload.Blocks) != 3 {
		t.Fatalf("expected header + section + divider, got %d blocks", len(payload.Blocks))
	}
	if payload.Blocks[0].Type != "header" || payload.Blocks[0].Text.Text != "jobsift: 1 new strong match" {
		t.Errorf("unexpected header %+v", payload.Blocks[0])
	}
	section := payload.Blocks[1].Text.Text
	if !strings.Contains(section, "<https://example.com/jobs/1|Backend Engineer>") {
		t.Errorf("section should link the title, got %q", section)
	}
	if !strings.Contains(section, "R&amp;D &lt;Labs&gt;") {
		t.Errorf("company should be escaped, got %q", section)
	}
	if !strings.Contains(section, "score *88*") {
		t.Errorf("section should carry the score, got %q", section)
	}
	if payload.Blocks[2].Type != "divider" {
		t.Errorf("block[2] type = %q, want divider", payload.Blocks[2].Type)
	}
}

func TestSlackSender_SplitsLargeDigests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var jobs []model.StoredJob
	for i := 0; i < 45; i++ {
		jobs = append(jobs, sampleJob(string(rune('a'+i%26))+"x", "Engineer", "Acme", "be"))
	}

	n := NewSlackSender(srv.URL, srv.Client(), discardLogger())
	if err := n.Send(context.Background(), sampleDigest(jobs...)); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if c := calls.Load(); c != 3 {
		t.Errorf("expected 3 messages for 45 jobs, got %d", c)
	}
}

func TestSlackSender_AnyFailureFailsDigest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var jobs []model.StoredJob
	for i := 0; i < 30; i++ {
		jobs = append(jobs, sampleJob("id", "Engineer", "Acme", "be"))
	}

	n := NewSlackSender(srv.URL, srv.Client(), discardLogger())
	if err := n.Send(context.Background(), sampleDigest(jobs...)); err == nil {
		t.Error("expected error when a message fails, got nil")
	}
}

func TestSlackSender_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackSender(srv.URL, srv.Client(), discardLogger())
	if err := n.Send(context.Background(), sampleDigest(sampleJob("1", "Engineer", "Acme", "be"))); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}
