package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/terra-clan/sponsor-eval/internal/config"
	"github.com/terra-clan/sponsor-eval/internal/host"
	"github.com/terra-clan/sponsor-eval/internal/models"
	"github.com/terra-clan/sponsor-eval/internal/roster"
	"github.com/terra-clan/sponsor-eval/internal/storage"
)

type staticRoster struct {
	roster.Static
}

func (staticRoster) Invalidate() {}

type acceptingSink struct{}

func (acceptingSink) Submit(context.Context, models.SubmissionPayload) (*models.SubmissionReceipt, error) {
	return &models.SubmissionReceipt{StatusCode: http.StatusOK}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	index := roster.Build([]models.AssignmentRow{
		{SponsorEmail: "ada@x.com", Project: "AppX", Student: "Bob"},
		{SponsorEmail: "ada@x.com", Project: "AppY", Student: "Cara"},
	})
	srv := host.NewServer(config.ServerConfig{}, host.Deps{
		Store:      storage.NewMemoryStore(),
		StorageKey: "sponsor_progress_v1",
		Roster:     staticRoster{roster.Static{Index: index}},
		Sink:       acceptingSink{},
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	c := NewClient(ts.URL)

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	token, err := c.OpenContext(ctx)
	if err != nil {
		t.Fatalf("OpenContext: %v", err)
	}
	if token == "" || c.Token() != token {
		t.Fatalf("expected client bound to token, got %q", c.Token())
	}

	view, err := c.SubmitIdentity(ctx, "Ada", "ada@x.com")
	if err != nil {
		t.Fatalf("SubmitIdentity: %v", err)
	}
	if len(view.Projects) != 2 {
		t.Fatalf("expected 2 projects, got %+v", view.Projects)
	}

	if _, err := c.SelectProject(ctx, "AppX"); err != nil {
		t.Fatalf("SelectProject: %v", err)
	}
	draft, err := c.SetScore(ctx, 0, 2, 7)
	if err != nil {
		t.Fatalf("SetScore: %v", err)
	}
	if v := draft.Rows[0].Scores[2]; v == nil || *v != 7 {
		t.Errorf("expected staged 7, got %v", v)
	}

	resp, err := c.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Session.State != "browsing_projects" {
		t.Errorf("expected browsing after first project, got %s", resp.Session.State)
	}
	if last := resp.Session.Projects[len(resp.Session.Projects)-1]; last.Name != "AppX" || !last.Completed {
		t.Errorf("expected completed AppX listed last, got %+v", resp.Session.Projects)
	}
}

func TestClientAPIError(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	c := NewClient(ts.URL)

	if _, err := c.OpenContext(ctx); err != nil {
		t.Fatalf("OpenContext: %v", err)
	}

	_, err := c.SubmitIdentity(ctx, "Zed", "zed@x.com")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "unknown_sponsor" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if apiErr.Message != "No projects found for that email." {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestClientRequiresContext(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")

	if _, err := c.Session(context.Background()); !errors.Is(err, ErrNoContext) {
		t.Errorf("expected ErrNoContext, got %v", err)
	}
	if _, err := c.Events(context.Background()); !errors.Is(err, ErrNoContext) {
		t.Errorf("expected ErrNoContext, got %v", err)
	}
}

func TestClientResumesContext(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	first := NewClient(ts.URL)
	token, err := first.OpenContext(ctx)
	if err != nil {
		t.Fatalf("OpenContext: %v", err)
	}
	if _, err := first.SubmitIdentity(ctx, "Ada", "ada@x.com"); err != nil {
		t.Fatalf("SubmitIdentity: %v", err)
	}

	second := NewClient(ts.URL, WithContextToken(token))
	view, err := second.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if view.Email != "ada@x.com" {
		t.Errorf("expected shared context, got %+v", view)
	}
}

func TestClientEvents(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	c := NewClient(ts.URL)

	if _, err := c.OpenContext(ctx); err != nil {
		t.Fatalf("OpenContext: %v", err)
	}

	stream, err := c.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	defer stream.Close()

	ev, err := stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Type != host.EventConnected {
		t.Errorf("expected connected event, got %+v", ev)
	}
}

func TestClientRubric(t *testing.T) {
	ts := newTestServer(t)

	criteria, err := NewClient(ts.URL).Rubric(context.Background())
	if err != nil {
		t.Fatalf("Rubric: %v", err)
	}
	if len(criteria) != 5 || criteria[0].Title == "" {
		t.Errorf("unexpected criteria %+v", criteria)
	}
}
