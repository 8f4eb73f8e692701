package applications_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/auth"
	"github.com/JaimeStill/relief/pkg/pagination"
)

type mockSystem struct {
	applications.System
	listFn    func(ctx context.Context, page pagination.PageRequest, filters applications.Filters) (*pagination.PageResult[applications.Application], error)
	findFn    func(ctx context.Context, id uuid.UUID, owner string) (*applications.Application, error)
	startFn   func(ctx context.Context, owner string, form applications.FormData) (*applications.Application, error)
	discardFn func(ctx context.Context, owner string) (uuid.UUID, error)
	reviewFn  func(ctx context.Context, id uuid.UUID, cmd applications.ReviewCommand) (*applications.Application, error)
	resultFn  func(ctx context.Context, id uuid.UUID, owner string) (*applications.ResultView, error)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters applications.Filters) (*pagination.PageResult[applications.Application], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID, owner string) (*applications.Application, error) {
	return m.findFn(ctx, id, owner)
}

func (m *mockSystem) Start(ctx context.Context, owner string, form applications.FormData) (*applications.Application, error) {
	return m.startFn(ctx, owner, form)
}

func (m *mockSystem) DiscardActive(ctx context.Context, owner string) (uuid.UUID, error) {
	return m.discardFn(ctx, owner)
}

func (m *mockSystem) RequireReview(ctx context.Context, id uuid.UUID, cmd applications.ReviewCommand) (*applications.Application, error) {
	return m.reviewFn(ctx, id, cmd)
}

func (m *mockSystem) Result(ctx context.Context, id uuid.UUID, owner string) (*applications.ResultView, error) {
	return m.resultFn(ctx, id, owner)
}

var appID = uuid.MustParse("9b2f6a1e-0c4d-4a8e-8f10-3d2b1c0a9e77")

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(sys applications.System) http.Handler {
	h := applications.NewHandler(sys, discard(), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}, 1<<20)
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	cfg := &auth.Config{OwnerHeader: "X-Owner-ID", Reviewers: []string{"officer-7"}}
	return auth.Middleware(nil, cfg, discard())(mux)
}

func validForm() applications.FormData {
	return applications.FormData{
		FullName:         "Ahmed Al Mansoori",
		EmiratesID:       "784-1990-1234567-1",
		DateOfBirth:      "1990-05-14",
		EmploymentStatus: "unemployed",
		FamilySize:       4,
		DeclaredIncome:   decimal.NewNullDecimal(decimal.NewFromInt(2500)),
	}
}

func sampleApp() *applications.Application {
	return &applications.Application{
		ID:        appID,
		OwnerID:   "user-1",
		Form:      validForm(),
		Status:    status.FormSubmitted,
		Progress:  20,
		Version:   2,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandlerStart(t *testing.T) {
	existing := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	tests := []struct {
		name       string
		owner      string
		err        error
		wantStatus int
	}{
		{"created", "user-1", nil, http.StatusCreated},
		{"active application exists", "user-1", &applications.ActiveApplicationError{ExistingID: existing}, http.StatusConflict},
		{"validation failure", "user-1", applications.ErrValidation, http.StatusBadRequest},
		{"anonymous", "", applications.ErrUnauthorized, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOwner string
			sys := &mockSystem{
				startFn: func(_ context.Context, owner string, form applications.FormData) (*applications.Application, error) {
					gotOwner = owner
					if tt.err != nil {
						return nil, tt.err
					}
					return sampleApp(), nil
				},
			}

			body, _ := json.Marshal(validForm())
			req := httptest.NewRequest(http.MethodPost, "/applications", bytes.NewReader(body))
			if tt.owner != "" {
				req.Header.Set("X-Owner-ID", tt.owner)
			}
			rec := httptest.NewRecorder()
			setup(sys).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if gotOwner != tt.owner {
				t.Errorf("owner = %q, want %q", gotOwner, tt.owner)
			}
		})
	}
}

func TestHandlerStartConflictDetails(t *testing.T) {
	existing := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	sys := &mockSystem{
		startFn: func(context.Context, string, applications.FormData) (*applications.Application, error) {
			return nil, &applications.ActiveApplicationError{ExistingID: existing}
		},
	}

	body, _ := json.Marshal(validForm())
	req := httptest.NewRequest(http.MethodPost, "/applications", bytes.NewReader(body))
	req.Header.Set("X-Owner-ID", "user-1")
	rec := httptest.NewRecorder()
	setup(sys).ServeHTTP(rec, req)

	var resp struct {
		Details map[string]string `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Details["existing_application_id"] != existing.String() {
		t.Errorf("details = %v", resp.Details)
	}
}

func TestHandlerStartRejectsUnknownFields(t *testing.T) {
	sys := &mockSystem{}
	req := httptest.NewRequest(http.MethodPost, "/applications", strings.NewReader(`{"full_name":"x","salary":1}`))
	rec := httptest.NewRecorder()
	setup(sys).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerListScopesToOwner(t *testing.T) {
	var captured applications.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f applications.Filters) (*pagination.PageResult[applications.Application], error) {
			captured = f
			result := pagination.NewPageResult([]applications.Application{*sampleApp()}, 1, 1, 20)
			return &result, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/applications?owner_id=someone-else&status=approved", nil)
	req.Header.Set("X-Owner-ID", "user-1")
	rec := httptest.NewRecorder()
	setup(sys).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if captured.OwnerID == nil || *captured.OwnerID != "user-1" {
		t.Errorf("owner filter = %v, want user-1", captured.OwnerID)
	}
	if captured.Status == nil || *captured.Status != "approved" {
		t.Errorf("status filter = %v, want approved", captured.Status)
	}
}

func TestHandlerFind(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		caller     string
		err        error
		wantStatus int
		wantScope  string
	}{
		{"found", "/applications/" + appID.String(), "user-1", nil, http.StatusOK, "user-1"},
		{"not owned", "/applications/" + appID.String(), "user-2", applications.ErrNotFound, http.StatusNotFound, "user-2"},
		{"reviewer reads any", "/applications/" + appID.String(), "officer-7", nil, http.StatusOK, ""},
		{"anonymous", "/applications/" + appID.String(), "", nil, http.StatusUnauthorized, ""},
		{"bad id", "/applications/not-a-uuid", "user-1", nil, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := "unset"
			sys := &mockSystem{
				findFn: func(_ context.Context, _ uuid.UUID, owner string) (*applications.Application, error) {
					scope = owner
					if tt.err != nil {
						return nil, tt.err
					}
					return sampleApp(), nil
				},
			}

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.caller != "" {
				req.Header.Set("X-Owner-ID", tt.caller)
			}
			rec := httptest.NewRecorder()
			setup(sys).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Code != http.StatusOK && rec.Code != http.StatusNotFound {
				return
			}
			if scope != tt.wantScope {
				t.Errorf("owner scope = %q, want %q", scope, tt.wantScope)
			}
		})
	}
}

func TestHandlerListReviewerKeepsOwnerFilter(t *testing.T) {
	var captured applications.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f applications.Filters) (*pagination.PageResult[applications.Application], error) {
			captured = f
			result := pagination.NewPageResult([]applications.Application{}, 0, 1, 20)
			return &result, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/applications?owner_id=user-9", nil)
	req.Header.Set("X-Owner-ID", "officer-7")
	rec := httptest.NewRecorder()
	setup(sys).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if captured.OwnerID == nil || *captured.OwnerID != "user-9" {
		t.Errorf("owner filter = %v, want user-9", captured.OwnerID)
	}
}

func TestHandlerOwnerMutationsRequireIdentity(t *testing.T) {
	for _, path := range []string{"/reset", "/cancel", "/documents"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/applications/"+appID.String()+path, nil)
			rec := httptest.NewRecorder()
			setup(&mockSystem{}).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestHandlerDiscardActive(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"discarded", nil, http.StatusOK},
		{"no active application", applications.ErrNoActive, http.StatusNotFound},
		{"processing", &status.InvalidStateError{Current: status.ScanningDocuments, Action: status.Discard}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				discardFn: func(context.Context, string) (uuid.UUID, error) {
					return appID, tt.err
				},
			}

			req := httptest.NewRequest(http.MethodDelete, "/applications/active", nil)
			req.Header.Set("X-Owner-ID", "user-1")
			rec := httptest.NewRecorder()
			setup(sys).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandlerRequireReviewUsesCaller(t *testing.T) {
	var captured applications.ReviewCommand
	sys := &mockSystem{
		reviewFn: func(_ context.Context, _ uuid.UUID, cmd applications.ReviewCommand) (*applications.Application, error) {
			captured = cmd
			app := sampleApp()
			app.Status = status.ManualReviewRequired
			return app, nil
		},
	}

	req := httptest.NewRequest(
		http.MethodPost,
		"/applications/"+appID.String()+"/manual-review",
		strings.NewReader(`{"actor":"spoofed","reason":"income mismatch"}`),
	)
	req.Header.Set("X-Owner-ID", "officer-7")
	rec := httptest.NewRecorder()
	setup(sys).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if captured.Actor != "officer-7" || captured.Reason != "income mismatch" {
		t.Errorf("command = %+v", captured)
	}
}

func TestHandlerRequireReviewNeedsReviewer(t *testing.T) {
	tests := []struct {
		name       string
		caller     string
		wantStatus int
	}{
		{"applicant", "user-1", http.StatusForbidden},
		{"anonymous", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			sys := &mockSystem{
				reviewFn: func(context.Context, uuid.UUID, applications.ReviewCommand) (*applications.Application, error) {
					called = true
					return sampleApp(), nil
				},
			}

			req := httptest.NewRequest(
				http.MethodPost,
				"/applications/"+appID.String()+"/manual-review",
				strings.NewReader(`{"reason":"income mismatch"}`),
			)
			if tt.caller != "" {
				req.Header.Set("X-Owner-ID", tt.caller)
			}
			rec := httptest.NewRecorder()
			setup(sys).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called {
				t.Error("manual review reached the system")
			}
		})
	}
}

func TestHandlerResult(t *testing.T) {
	t.Run("processing returns 202 with retry hint", func(t *testing.T) {
		sys := &mockSystem{
			resultFn: func(context.Context, uuid.UUID, string) (*applications.ResultView, error) {
				return &applications.ResultView{
					ApplicationID:     appID,
					State:             status.OCRCompleted,
					Status:            applications.ResultProcessing,
					RetryAfterSeconds: 5,
				}, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/applications/"+appID.String()+"/result", nil)
		req.Header.Set("X-Owner-ID", "user-1")
		rec := httptest.NewRecorder()
		setup(sys).ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Errorf("status = %d, want 202", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "5" {
			t.Errorf("Retry-After = %q, want 5", got)
		}
	})

	t.Run("decided returns 200", func(t *testing.T) {
		sys := &mockSystem{
			resultFn: func(context.Context, uuid.UUID, string) (*applications.ResultView, error) {
				return &applications.ResultView{
					ApplicationID: appID,
					State:         status.Approved,
					Status:        applications.ResultDecided,
					Decision:      &applications.DecisionProjection{Outcome: "approved"},
				}, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/applications/"+appID.String()+"/result", nil)
		req.Header.Set("X-Owner-ID", "user-1")
		rec := httptest.NewRecorder()
		setup(sys).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", applications.ErrNotFound, http.StatusNotFound},
		{"no active", applications.ErrNoActive, http.StatusNotFound},
		{"conflict", applications.ErrConflict, http.StatusConflict},
		{"active exists", &applications.ActiveApplicationError{}, http.StatusConflict},
		{"invalid state", &status.InvalidStateError{Current: status.Approved, Action: status.BeginProcessing}, http.StatusConflict},
		{"already processing", &status.AlreadyProcessingError{Current: status.OCRCompleted}, http.StatusConflict},
		{"validation", applications.ErrValidation, http.StatusBadRequest},
		{"unauthorized", applications.ErrUnauthorized, http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applications.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandlerSubmitDocumentsRejectsBadUploads(t *testing.T) {
	oversized := func() (io.Reader, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, _ := mw.CreateFormFile("bank_statement", "statement.pdf")
		part.Write(bytes.Repeat([]byte("x"), 2<<20))
		mw.Close()
		return &buf, mw.FormDataContentType()
	}

	tests := []struct {
		name       string
		body       func() (io.Reader, string)
		wantStatus int
	}{
		{"not multipart", func() (io.Reader, string) {
			return strings.NewReader(`{"file":"x"}`), "application/json"
		}, http.StatusBadRequest},
		{"over upload limit", oversized, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := tt.body()
			req := httptest.NewRequest(http.MethodPost, "/applications/"+appID.String()+"/documents", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("X-Owner-ID", "user-1")
			rec := httptest.NewRecorder()
			setup(&mockSystem{}).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
