package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/backend"
	"github.com/justsurfingit/elevate-tracker/internal/config"
	"github.com/justsurfingit/elevate-tracker/internal/database"
	"github.com/justsurfingit/elevate-tracker/internal/models"
	"github.com/justsurfingit/elevate-tracker/internal/services"
	"github.com/justsurfingit/elevate-tracker/internal/tracker"
)

type stubVerifier map[string]string

func (v stubVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	email, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{Email: email, Name: "Ada"}, nil
}

type stubProvider struct{}

func (stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (stubProvider) Exchange(_ context.Context, code string) (*auth.Session, error) {
	if code != "good-code" {
		return nil, errors.New("bad code")
	}
	return auth.NewSession(&auth.Identity{Email: "ada@example.com", Name: "Ada"}, "ada-token", "access", "", time.Hour), nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	router   *gin.Engine
	store    *database.MemoryStore
	sessions *auth.MemorySessionStore
}

func newFixture(t *testing.T, backendURL string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Backend.BaseURL = backendURL
	cfg.RateLimit.RequestsPerMinute = 600
	cfg.RateLimit.Burst = 100

	log := quietLogger()
	store := database.NewMemoryStore()
	sessions := auth.NewMemorySessionStore()
	r := NewRouter(Deps{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Jobs:     services.NewJobApplicationService(store, log),
		LLM:      &services.LLMService{Log: log},
		Backend:  backend.New(cfg),
		Sessions: sessions,
		Verifier: stubVerifier{"ada-token": "ada@example.com", "bob-token": "bob@example.com"},
		Provider: stubProvider{},
	})
	return &fixture{router: r, store: store, sessions: sessions}
}

func (f *fixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body.Error
}

func TestJobApplicationsResource(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")
	const path = "/api/job-applications"

	w := f.do(t, http.MethodGet, path, "", nil)
	if w.Code != http.StatusBadRequest || errorOf(t, w) != "Email is required" {
		t.Errorf("GET without email: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, path+"?email=ada@example.com", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"applications":[],"count":0}` {
		t.Errorf("GET empty: %d %s", w.Code, w.Body.String())
	}

	badCreates := []struct {
		body any
		want string
	}{
		{map[string]any{"email": "ada@example.com"}, "Email and application data are required"},
		{map[string]any{"application": map[string]string{"company": "Acme"}}, "Email and application data are required"},
		{map[string]any{"email": "ada@example.com", "application": map[string]string{"company": "Acme"}}, "Company, position, and location are required"},
		{map[string]any{"email": "ada@example.com", "application": map[string]string{"company": "Acme", "position": "SRE", "location": "Remote", "status": "hired"}}, `invalid status: "hired"`},
	}
	for _, tt := range badCreates {
		w := f.do(t, http.MethodPost, path, "", tt.body)
		if w.Code != http.StatusBadRequest || errorOf(t, w) != tt.want {
			t.Errorf("POST %v: %d %s", tt.body, w.Code, w.Body.String())
		}
	}

	w = f.do(t, http.MethodPost, path, "", map[string]any{
		"email":       "ada@example.com",
		"application": map[string]string{"id": "a1", "company": "Acme", "position": "SRE", "location": "Remote"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, path, "", map[string]any{
		"email":       "ada@example.com",
		"application": map[string]string{"id": "a1", "company": "Acme", "position": "SRE", "location": "Remote"},
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate POST: %d", w.Code)
	}

	w = f.do(t, http.MethodPut, path, "", map[string]any{"email": "ada@example.com", "applicationId": "a1"})
	if w.Code != http.StatusBadRequest || errorOf(t, w) != "Email, applicationId, and updates are required" {
		t.Errorf("PUT missing updates: %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodPut, path, "", map[string]any{"email": "nobody@example.com", "applicationId": "a1", "updates": map[string]string{"status": "offer"}})
	if w.Code != http.StatusNotFound || errorOf(t, w) != "No applications found for this user" {
		t.Errorf("PUT unknown user: %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodPut, path, "", map[string]any{"email": "ada@example.com", "applicationId": "zz", "updates": map[string]string{"status": "offer"}})
	if w.Code != http.StatusNotFound || errorOf(t, w) != "Application not found" {
		t.Errorf("PUT unknown id: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPut, path, "", map[string]any{"email": "ada@example.com", "applicationId": "a1", "updates": map[string]string{"status": "offer"}})
	var updated struct {
		Success     bool                  `json:"success"`
		Application models.JobApplication `json:"application"`
	}
	json.Unmarshal(w.Body.Bytes(), &updated)
	if w.Code != http.StatusOK || !updated.Success || updated.Application.Status != models.StatusOffer {
		t.Errorf("PUT: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodDelete, path, "", map[string]any{"email": "ada@example.com"})
	if w.Code != http.StatusBadRequest || errorOf(t, w) != "Email and applicationId are required" {
		t.Errorf("DELETE missing id: %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodDelete, path, "", map[string]any{"email": "ada@example.com", "applicationId": "a1"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Application deleted successfully") {
		t.Errorf("DELETE: %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodDelete, path, "", map[string]any{"email": "ada@example.com", "applicationId": "a1"})
	if w.Code != http.StatusNotFound {
		t.Errorf("second DELETE: %d", w.Code)
	}
}

func TestSignedInCallerCannotTouchOtherUsers(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")
	w := f.do(t, http.MethodGet, "/api/job-applications?email=ada@example.com", "bob-token", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/api/job-applications?email=ADA@example.com", "ada-token", nil)
	if w.Code != http.StatusOK {
		t.Errorf("own email rejected: %d", w.Code)
	}
}

func TestEmailCaseSharesOneDocument(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")
	const path = "/api/job-applications"

	w := f.do(t, http.MethodPost, path, "ada-token", map[string]any{
		"email":       " Ada@Example.com",
		"application": map[string]string{"id": "a1", "company": "Acme", "position": "SRE", "location": "Remote"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, path+"?email=ada@example.com", "ada-token", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":1`) {
		t.Errorf("GET lowercase: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPut, path, "", map[string]any{"email": "ADA@EXAMPLE.COM", "applicationId": "a1", "updates": map[string]string{"status": "offer"}})
	if w.Code != http.StatusOK {
		t.Errorf("PUT uppercase: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPut, path, "", map[string]any{"email": "ada@example.com", "applicationId": "a1", "updates": map[string]string{"workType": ""}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("PUT blank workType: %d %s", w.Code, w.Body.String())
	}
}

func TestTrackerStoreAgainstAPI(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx := context.Background()
	session := auth.NewSession(&auth.Identity{Email: "ada@example.com"}, "ada-token", "", "", time.Hour)
	store := tracker.NewStore(tracker.NewHTTPRemote(srv.URL, srv.Client()), session, tracker.WithLogger(quietLogger()))

	acme, err := store.Create(ctx, models.JobApplication{Company: "Acme", Position: "SRE", Location: "Remote", Status: models.StatusApplied, Priority: models.PriorityHigh})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	globex, err := store.Create(ctx, models.JobApplication{Company: "Globex", Position: "Backend", Location: "Berlin", Status: models.StatusApplied, Priority: models.PriorityLow})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Move(ctx, acme.ID, models.StatusInterview1); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := store.Delete(ctx, globex.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	fresh := tracker.NewStore(tracker.NewHTTPRemote(srv.URL, srv.Client()), session, tracker.WithLogger(quietLogger()))
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := fresh.Applications()
	if len(got) != 1 || got[0].ID != acme.ID || got[0].Status != models.StatusInterview1 {
		t.Fatalf("server state = %+v", got)
	}
	if mirror := store.Applications(); len(mirror) != 1 || mirror[0] != got[0] {
		t.Errorf("mirror %+v differs from server %+v", mirror, got)
	}
}

func TestFeatureProxy(t *testing.T) {
	var gotAuth, gotPath, gotBody, gotType string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.Method + " " + r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"detail":"short and stout"}`))
	}))
	defer upstream.Close()
	f := newFixture(t, upstream.URL)

	w := f.do(t, http.MethodPost, "/api/features/feedback", "ada-token", map[string]string{"answer": "42"})
	if w.Code != http.StatusTeapot || w.Body.String() != `{"detail":"short and stout"}` {
		t.Errorf("relay: %d %s", w.Code, w.Body.String())
	}
	if gotAuth != "Bearer ada-token" || gotPath != "POST /feedback" || gotBody != `{"answer":"42"}` || gotType != "application/json" {
		t.Errorf("upstream saw auth=%q path=%q body=%q type=%q", gotAuth, gotPath, gotBody, gotType)
	}

	f.do(t, http.MethodDelete, "/api/features/delete_cover_letter/cl-9", "ada-token", nil)
	if gotPath != "DELETE /delete_cover_letter/cl-9" {
		t.Errorf("path = %q", gotPath)
	}

	if w := f.do(t, http.MethodGet, "/api/features/dashboard", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/features/launch_missiles", "ada-token", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown feature: %d", w.Code)
	}
}

func TestFeatureProxyBackendDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstream.Close()
	f := newFixture(t, upstream.URL)

	w := f.do(t, http.MethodGet, "/api/features/dashboard", "ada-token", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d", w.Code)
	}
}

func samplePathway() *models.LearningPathway {
	return &models.LearningPathway{
		Topic: "Go",
		Steps: []models.Step{{
			CoreGoals: []string{"syntax", "tooling"},
			Topics:    []models.Topic{{Name: "Modules", Projects: []models.TextOr[models.Project]{{Text: "CLI"}}}},
		}},
	}
}

func TestPathwayStats(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")
	w := f.do(t, http.MethodPost, "/api/pathways/stats", "ada-token", map[string]any{
		"pathway":         samplePathway(),
		"completed_items": []string{"step-0-goal-0", "step-0-milestone", "step-9-goal-0"},
	})
	// 2 goals + 1 topic + 1 project + 1 milestone
	want := `{"completed":2,"total":5,"percentage":40,"stale_items":["step-9-goal-0"]}`
	if w.Code != http.StatusOK || w.Body.String() != want {
		t.Errorf("stats: %d %s", w.Code, w.Body.String())
	}

	if w := f.do(t, http.MethodPost, "/api/pathways/stats", "ada-token", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing pathway: %d", w.Code)
	}
}

func TestPathwayToggle(t *testing.T) {
	var pushed models.PathwayProgress
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/saved_learning_pathways":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"pathways": []models.SavedPathway{{
					PathwayID:       "p1",
					Topic:           "Go",
					LearningPathway: *samplePathway(),
					Progress:        models.PathwayProgress{CompletedItems: []string{"step-0-goal-0"}},
				}},
			})
		case r.Method == http.MethodPut && r.URL.Path == "/update_pathway_progress/p1":
			var in struct {
				ProgressData models.PathwayProgress `json:"progress_data"`
			}
			json.NewDecoder(r.Body).Decode(&in)
			pushed = in.ProgressData
			w.Write([]byte(`{"success":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()
	f := newFixture(t, upstream.URL)

	w := f.do(t, http.MethodPost, "/api/pathways/saved/p1/toggle", "ada-token", map[string]string{"item_id": "step-0-goal-0"})
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: %d %s", w.Code, w.Body.String())
	}
	if len(pushed.CompletedItems) != 0 || pushed.TotalItems != 5 || pushed.Percentage != 0 {
		t.Errorf("pushed progress = %+v", pushed)
	}

	w = f.do(t, http.MethodPost, "/api/pathways/saved/p1/toggle", "ada-token", map[string]string{"item_id": "step-0-topic-0"})
	var resp struct {
		Completed bool                   `json:"completed"`
		Progress  models.PathwayProgress `json:"progress"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Completed || resp.Progress.Percentage != 40 {
		t.Errorf("second toggle = %+v", resp)
	}

	w = f.do(t, http.MethodPost, "/api/pathways/saved/missing/toggle", "ada-token", map[string]string{"item_id": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing pathway: %d", w.Code)
	}
}

func TestSignInFlow(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")

	w := f.do(t, http.MethodGet, "/api/auth/signin?callbackUrl=/platform/features/job-tracker", "", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("signin: %d", w.Code)
	}
	loc, _ := url.Parse(w.Header().Get("Location"))
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("no state in redirect")
	}
	cookies := w.Result().Cookies()

	callback := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/google?"+query, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	if w := callback("state=forged&code=good-code"); w.Code != http.StatusBadRequest {
		t.Errorf("forged state: %d", w.Code)
	}
	if w := callback("state=" + state + "&code=bad"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad code: %d", w.Code)
	}

	w = callback("state=" + state + "&code=good-code")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/platform/features/job-tracker" {
		t.Fatalf("callback: %d %s", w.Code, w.Header().Get("Location"))
	}
	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "elevate_session" && c.Value != "" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || !sessionCookie.HttpOnly {
		t.Fatalf("session cookie = %+v", sessionCookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(sessionCookie)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"state":"authenticated"`) || !strings.Contains(w.Body.String(), `"email":"ada@example.com"`) {
		t.Errorf("session: %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil)
	req.AddCookie(sessionCookie)
	f.router.ServeHTTP(httptest.NewRecorder(), req)
	if _, err := f.sessions.Get(context.Background(), sessionCookie.Value); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("session survived signout: %v", err)
	}
}

func TestSafeRedirect(t *testing.T) {
	for in, want := range map[string]string{
		"/platform":            "/platform",
		"":                     "/home",
		"https://evil.example": "/home",
		"//evil.example":       "/home",
		"/\\evil.example":      "/home",
	} {
		if got := safeRedirect(in, "/home"); got != want {
			t.Errorf("safeRedirect(%q) = %q", in, got)
		}
	}
}

func TestExtractWithoutLLM(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")
	w := f.do(t, http.MethodPost, "/api/job-applications/extract", "ada-token", map[string]string{"raw_html": "<h1>SRE</h1>"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:0")
	w := f.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}
