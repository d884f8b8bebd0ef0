package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/terra-clan/sponsor-eval/internal/models"
)

func TestFetchRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("Cache-Control") != "no-store" {
			t.Errorf("expected no-store, got %q", r.Header.Get("Cache-Control"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"values":[["Sponsor Email","Project","Student"],["ADA@x.com","AppX","Bob"]]}`))
	}))
	defer srv.Close()

	rows, err := NewRosterSource(srv.URL).FetchRows(context.Background())
	if err != nil {
		t.Fatalf("FetchRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := models.AssignmentRow{SponsorEmail: "ADA@x.com", Project: "AppX", Student: "Bob"}
	if rows[0] != want {
		t.Errorf("got %+v, want %+v", rows[0], want)
	}
}

func TestFetchRowsFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "not found", status: http.StatusNotFound, body: ""},
		{name: "malformed json", status: http.StatusOK, body: "<html>"},
		{name: "wrong shape", status: http.StatusOK, body: `"just a string"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := NewRosterSource(srv.URL).FetchRows(context.Background()); err == nil {
				t.Fatal("expected fetch failure")
			}
		})
	}
}

func TestFetchRowsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewRosterSource(url).FetchRows(context.Background()); err == nil {
		t.Fatal("expected network failure")
	}
}

func TestSubmit(t *testing.T) {
	var got models.SubmissionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	five := 5
	payload := models.SubmissionPayload{
		SponsorName:  "Ada",
		SponsorEmail: "ada@x.com",
		Project:      "AppX",
		Rubric:       []string{"A", "B", "C", "D", "E"},
		Responses: []models.StudentResponse{
			{Student: "Bob", Ratings: map[string]*int{"A": &five, "B": nil}},
		},
		Timestamp: "2026-10-14T10:00:00Z",
	}

	receipt, err := NewSubmissionSink(srv.URL).Submit(context.Background(), payload)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.StatusCode != http.StatusOK || receipt.Body["ok"] != true {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if got.Project != "AppX" || got.Responses[0].Student != "Bob" {
		t.Errorf("unexpected payload received: %+v", got)
	}
	if v := got.Responses[0].Ratings["A"]; v == nil || *v != 5 {
		t.Errorf("expected rating A = 5, got %v", v)
	}
	if v, ok := got.Responses[0].Ratings["B"]; !ok || v != nil {
		t.Errorf("unrated criterion must be sent as null, got %v %v", v, ok)
	}
}

func TestSubmitIgnoresNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("saved"))
	}))
	defer srv.Close()

	receipt, err := NewSubmissionSink(srv.URL).Submit(context.Background(), models.SubmissionPayload{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.StatusCode != http.StatusCreated || receipt.Body != nil {
		t.Errorf("unexpected receipt %+v", receipt)
	}
}

func TestSubmitNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSubmissionSink(srv.URL).Submit(context.Background(), models.SubmissionPayload{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unexpected status %d", statusErr.StatusCode)
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	sink := NewSubmissionSink(srv.URL, WithTimeout(50*time.Millisecond))
	if _, err := sink.Submit(context.Background(), models.SubmissionPayload{}); err == nil {
		t.Fatal("expected timeout error")
	}
}
