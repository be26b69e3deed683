package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"notecast/internal/api"
	"notecast/internal/config"
	"notecast/internal/daemon"
	"notecast/internal/logging"
	"notecast/internal/services/llm"
	"notecast/internal/store"
	"notecast/internal/testsupport"
)

const script = `{"transcript":[` +
	`{"speaker":"Person1","dialogue":"Welcome to the show."},` +
	`{"speaker":"Person2","dialogue":"Today we cover the report."},` +
	`{"speaker":"Person1","dialogue":"Revenue grew."},` +
	`{"speaker":"Person2","dialogue":"Hiring slowed."}]}`

type env struct {
	cfg    *config.Config
	st     *store.Store
	d      *daemon.Daemon
	gen    *testsupport.FakeGenerator
	speech *testsupport.FakeSynthesizer
	base   string
	token  string
}

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	gen := &testsupport.FakeGenerator{Responses: []string{script}}
	speech := &testsupport.FakeSynthesizer{SegmentDuration: 90 * time.Second}
	d, err := daemon.New(cfg, st, logging.NewNop(), daemon.Dependencies{Generator: gen, Speech: speech})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return &env{cfg: cfg, st: st, d: d, gen: gen, speech: speech, token: cfg.Paths.APIToken}
}

func (e *env) start(t *testing.T) {
	t.Helper()
	if err := e.d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.base = "http://" + e.d.APIAddress()
}

func (e *env) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.base+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	} else if out != nil {
		if errOut, ok := out.(*api.ErrorResponse); ok {
			_ = json.NewDecoder(resp.Body).Decode(errOut)
		}
	}
	return resp.StatusCode
}

func (e *env) seedNotebook(t *testing.T) api.Notebook {
	t.Helper()
	testsupport.SaveTemplate(t, e.st, "deep_dive")
	var nb api.Notebook
	if code := e.do(t, http.MethodPost, "/api/notebooks", api.CreateNotebookRequest{Name: "Research"}, &nb); code != http.StatusCreated {
		t.Fatalf("create notebook returned %d", code)
	}
	var src api.Source
	code := e.do(t, http.MethodPost, "/api/notebooks/"+nb.ID+"/sources", api.AddSourceRequest{
		Kind:  "text",
		Title: "Report",
		Text:  "Revenue grew twelve percent in the third quarter.\n\nHiring will slow while the product ships.",
	}, &src)
	if code != http.StatusCreated {
		t.Fatalf("add source returned %d", code)
	}
	return nb
}

func TestDaemonStartStop(t *testing.T) {
	e := newDaemon(t)
	ctx := context.Background()
	e.start(t)

	status, err := e.d.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != e.cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	if err := e.d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	e.d.Stop(ctx)
	status, err = e.d.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if e.d.APIAddress() != "" {
		t.Fatalf("expected api to be closed, got %q", e.d.APIAddress())
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	e := newDaemon(t)
	e.start(t)

	other, err := daemon.New(e.cfg, e.st, logging.NewNop(), daemon.Dependencies{
		Generator: &testsupport.FakeGenerator{},
		Speech:    &testsupport.FakeSynthesizer{},
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(context.Background()); err == nil {
		other.Close()
		t.Fatal("expected second daemon to fail while the lock is held")
	}
}

func TestDaemonStartRecoversInterruptedEpisodes(t *testing.T) {
	e := newDaemon(t)
	ctx := context.Background()
	nb := testsupport.NewNotebook(t, e.st, "Leftovers")
	ep, err := e.st.CreateEpisode(ctx, store.NewEpisode{
		Name:       "Interrupted",
		NotebookID: nb.ID,
		Template:   testsupport.Template("deep_dive"),
		Length:     store.LengthShort,
	})
	if err != nil {
		t.Fatalf("CreateEpisode failed: %v", err)
	}
	if _, err := e.st.StartEpisode(ctx, ep.ID, "script"); err != nil {
		t.Fatalf("StartEpisode failed: %v", err)
	}

	e.start(t)

	got, err := e.st.GetEpisode(ctx, ep.ID)
	if err != nil {
		t.Fatalf("GetEpisode failed: %v", err)
	}
	if got.Status != store.StatusFailed || got.FailureReason != store.DaemonStopReason {
		t.Fatalf("expected failed episode with daemon stop reason, got %s %q", got.Status, got.FailureReason)
	}

	templates, err := e.st.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(templates) == 0 {
		t.Fatal("expected default template to be seeded")
	}
}

func TestAPIEpisodeLifecycle(t *testing.T) {
	e := newDaemon(t)
	e.start(t)
	nb := e.seedNotebook(t)

	var accepted api.EpisodeResponse
	code := e.do(t, http.MethodPost, "/api/notebooks/"+nb.ID+"/episodes", api.EpisodeRequest{
		Template: "deep_dive",
		Name:     "Quarterly recap",
		Length:   "short",
	}, &accepted)
	if code != http.StatusAccepted {
		t.Fatalf("request episode returned %d", code)
	}
	if accepted.Episode.Status != string(store.StatusPending) {
		t.Fatalf("expected pending episode, got %s", accepted.Episode.Status)
	}

	var done api.EpisodeResponse
	if code := e.do(t, http.MethodGet, "/api/episodes/"+accepted.Episode.ID+"/wait?timeout=10s", nil, &done); code != http.StatusOK {
		t.Fatalf("wait returned %d", code)
	}
	if done.Episode.Status != string(store.StatusCompleted) {
		t.Fatalf("expected completed, got %s (%s)", done.Episode.Status, done.Episode.FailureReason)
	}
	if done.Episode.AudioURL != api.EpisodeAudioPath(done.Episode.ID) {
		t.Fatalf("unexpected audio url %q", done.Episode.AudioURL)
	}
	if done.Episode.Duration() != 7*time.Minute+30*time.Second {
		t.Fatalf("unexpected duration %s", done.Episode.Duration())
	}

	resp, err := http.Get(e.base + done.Episode.AudioURL)
	if err != nil {
		t.Fatalf("audio request failed: %v", err)
	}
	audio, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audio returned %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "audio/wav" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(audio, []byte("RIFF")) {
		t.Fatal("expected a WAV payload")
	}

	var list api.EpisodeListResponse
	if code := e.do(t, http.MethodGet, "/api/notebooks/"+nb.ID+"/episodes", nil, &list); code != http.StatusOK {
		t.Fatalf("list episodes returned %d", code)
	}
	if len(list.Episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(list.Episodes))
	}

	if code := e.do(t, http.MethodDelete, "/api/episodes/"+done.Episode.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete episode returned %d", code)
	}
	if code := e.do(t, http.MethodGet, "/api/episodes/"+done.Episode.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
}

func TestAPIRejectsInvalidEpisodeRequests(t *testing.T) {
	e := newDaemon(t)
	e.start(t)
	nb := e.seedNotebook(t)
	empty := testsupport.NewNotebook(t, e.st, "Empty")

	tests := []struct {
		name     string
		notebook string
		req      api.EpisodeRequest
		status   int
		code     string
	}{
		{"missing name", nb.ID, api.EpisodeRequest{Template: "deep_dive", Length: "short"}, http.StatusBadRequest, "validation"},
		{"bad length", nb.ID, api.EpisodeRequest{Template: "deep_dive", Name: "x", Length: "epic"}, http.StatusBadRequest, "validation"},
		{"unknown template", nb.ID, api.EpisodeRequest{Template: "missing", Name: "x", Length: "short"}, http.StatusNotFound, "not_found"},
		{"unknown notebook", "nope", api.EpisodeRequest{Template: "deep_dive", Name: "x", Length: "short"}, http.StatusNotFound, "not_found"},
		{"empty notebook", empty.ID, api.EpisodeRequest{Template: "deep_dive", Name: "x", Length: "short"}, http.StatusUnprocessableEntity, "chunking"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out api.ErrorResponse
			code := e.do(t, http.MethodPost, "/api/notebooks/"+tc.notebook+"/episodes", tc.req, &out)
			if code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", code, tc.status, out.Error)
			}
			if out.Code != tc.code {
				t.Fatalf("code = %q, want %q", out.Code, tc.code)
			}
		})
	}

	episodes, err := e.st.ListEpisodes(context.Background(), "")
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 0 {
		t.Fatalf("expected no episodes, got %d", len(episodes))
	}
}

func TestAPIContentRoutes(t *testing.T) {
	e := newDaemon(t)
	e.gen.Respond = func(llm.Request) (string, error) { return "Key points: growth.", nil }
	e.start(t)
	nb := e.seedNotebook(t)

	var sources api.SourceListResponse
	if code := e.do(t, http.MethodGet, "/api/notebooks/"+nb.ID+"/sources", nil, &sources); code != http.StatusOK {
		t.Fatalf("list sources returned %d", code)
	}
	if len(sources.Sources) != 1 || sources.Sources[0].FullText != "" {
		t.Fatalf("unexpected sources %+v", sources.Sources)
	}

	var full api.Source
	if code := e.do(t, http.MethodGet, "/api/sources/"+sources.Sources[0].ID, nil, &full); code != http.StatusOK {
		t.Fatalf("get source returned %d", code)
	}
	if !strings.Contains(full.FullText, "Revenue grew") {
		t.Fatalf("expected full text, got %q", full.FullText)
	}

	var note api.Note
	if code := e.do(t, http.MethodPost, "/api/notebooks/"+nb.ID+"/notes", api.CreateNoteRequest{Title: "Todo", Content: "Ask about churn"}, &note); code != http.StatusCreated {
		t.Fatalf("create note returned %d", code)
	}

	var tr api.Transformation
	code := e.do(t, http.MethodPost, "/api/transformations", api.TransformationRequest{
		Name:   "summary",
		Prompt: "Summarize {{.SourceTitle}}",
	}, &tr)
	if code != http.StatusCreated {
		t.Fatalf("create transformation returned %d", code)
	}

	var errOut api.ErrorResponse
	if code := e.do(t, http.MethodPost, "/api/sources/"+full.ID+"/insights", api.ApplyTransformationRequest{}, &errOut); code != http.StatusNotFound {
		t.Fatalf("expected 404 without a default transformation, got %d", code)
	}
	if code := e.do(t, http.MethodPost, "/api/transformations/"+tr.ID+"/default", nil, &tr); code != http.StatusOK {
		t.Fatalf("set default returned %d", code)
	}
	var insight api.Insight
	if code := e.do(t, http.MethodPost, "/api/sources/"+full.ID+"/insights", api.ApplyTransformationRequest{}, &insight); code != http.StatusCreated {
		t.Fatalf("apply default returned %d", code)
	}
	if insight.InsightType != "summary" || insight.Content != "Key points: growth." {
		t.Fatalf("unexpected insight %+v", insight)
	}

	var cleared api.UnsetDefaultResponse
	if code := e.do(t, http.MethodDelete, "/api/transformations/default", nil, &cleared); code != http.StatusOK || !cleared.Cleared {
		t.Fatalf("unset default returned %d cleared=%v", code, cleared.Cleared)
	}

	if code := e.do(t, http.MethodDelete, "/api/notebooks/"+nb.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete notebook returned %d", code)
	}
	if code := e.do(t, http.MethodGet, "/api/notebooks/"+nb.ID+"/sources", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted notebook, got %d", code)
	}
}

func TestAPITemplateImport(t *testing.T) {
	e := newDaemon(t)
	e.start(t)

	doc := `
[[templates]]
name = "interview"
podcast_name = "Talk Time"
person1_roles = ["interviewer"]
person2_roles = ["guest"]
voice1 = "alloy"
voice2 = "echo"
creativity = 0.6
`
	req, err := http.NewRequest(http.MethodPost, e.base+"/api/templates/import", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	var out api.TemplateListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode import: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(out.Templates) != 1 {
		t.Fatalf("import returned %d with %d templates", resp.StatusCode, len(out.Templates))
	}

	var tpl store.EpisodeTemplate
	if code := e.do(t, http.MethodGet, "/api/templates/interview", nil, &tpl); code != http.StatusOK {
		t.Fatalf("get template returned %d", code)
	}
	if tpl.Voice2 != "echo" {
		t.Fatalf("unexpected template %+v", tpl)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	e := newDaemon(t, testsupport.WithAPIToken("secret"))
	e.start(t)

	resp, err := http.Get(e.base + "/api/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	var status api.DaemonStatus
	if code := e.do(t, http.MethodGet, "/api/status", nil, &status); code != http.StatusOK {
		t.Fatalf("status with token returned %d", code)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
}

func TestAPIEpisodeEventsStream(t *testing.T) {
	e := newDaemon(t)
	e.speech.Delay = 20 * time.Millisecond
	e.start(t)
	nb := e.seedNotebook(t)

	var accepted api.EpisodeResponse
	code := e.do(t, http.MethodPost, "/api/notebooks/"+nb.ID+"/episodes", api.EpisodeRequest{
		Template: "deep_dive",
		Name:     "Streamed",
		Length:   "short",
	}, &accepted)
	if code != http.StatusAccepted {
		t.Fatalf("request episode returned %d", code)
	}

	wsURL := fmt.Sprintf("ws://%s/api/episodes/%s/events", e.d.APIAddress(), accepted.Episode.ID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var last api.Episode
	for {
		var ep api.Episode
		if err := conn.ReadJSON(&ep); err != nil {
			break
		}
		last = ep
		if ep.Terminal() {
			break
		}
	}
	if last.Status != string(store.StatusCompleted) {
		t.Fatalf("expected final completed event, got %q", last.Status)
	}
}
