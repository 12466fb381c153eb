package workflow

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carelink/telehealth/internal/platform/auth"
)

func TestHandler_Join(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)
	body := `{"appointmentId":"` + env.appt.ID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), env.patient))
	rec := httptest.NewRecorder()

	if err := h.Join(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(out["sessionUrl"], SessionBaseURL) {
		t.Errorf("unexpected body %v", out)
	}
}

func TestHandler_Documents_EmptyIsArray(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), env.patient))
	rec := httptest.NewRecorder()

	if err := h.Documents(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}
