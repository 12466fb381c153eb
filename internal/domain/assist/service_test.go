package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth/internal/domain/appointment"
	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
	"github.com/carelink/telehealth/internal/platform/telemetry"
)

type mockRepo struct {
	notes []*Note
	err   error
}

func (m *mockRepo) SaveNote(_ context.Context, n *Note) error {
	if m.err != nil {
		return m.err
	}
	n.ID = uuid.New()
	m.notes = append(m.notes, n)
	return nil
}

type stubDrafter struct {
	out    string
	err    error
	prompt string
}

func (s *stubDrafter) Draft(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.out, s.err
}

type stubParticipants struct {
	allowed map[uuid.UUID]bool
}

func (s stubParticipants) Check(_ context.Context, _ auth.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	if !s.allowed[id] {
		return nil, apperr.Forbidden("You are not part of this appointment.")
	}
	return &appointment.Appointment{ID: id}, nil
}

func newTestService(d Drafter) (*Service, *mockRepo, *telemetry.Metrics, uuid.UUID) {
	repo := &mockRepo{}
	apptID := uuid.New()
	m := telemetry.NewMetrics("test", prometheus.NewRegistry())
	svc := NewService(repo, d, stubParticipants{allowed: map[uuid.UUID]bool{apptID: true}}, m, zerolog.Nop())
	return svc, repo, m, apptID
}

func caller() auth.Identity {
	return auth.Identity{ID: uuid.New(), Email: "sam@example.com", Name: "Sam Park", Role: auth.RolePatient}
}

func TestService_Summarize_Model(t *testing.T) {
	d := &stubDrafter{out: "  Model draft  "}
	svc, repo, m, apptID := newTestService(d)
	c := caller()

	res, err := svc.Summarize(context.Background(), c, SummarizeInput{
		Intent: "previsit", Context: "Sam Park has had a fever since Monday", AppointmentID: apptID.String(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary != "Model draft" || res.Source != SourceModel {
		t.Errorf("unexpected result %+v", res)
	}
	if strings.Contains(d.prompt, "Sam") || strings.Contains(res.SanitizedContext, "Park") {
		t.Errorf("caller name leaked: %q", d.prompt)
	}
	if len(repo.notes) != 1 {
		t.Fatalf("expected one saved note, got %d", len(repo.notes))
	}
	n := repo.notes[0]
	if n.AppointmentID == nil || *n.AppointmentID != apptID || n.Title != "Gemini previsit note" || n.AuthorID != c.ID {
		t.Errorf("unexpected note %+v", n)
	}
	if v := testutil.ToFloat64(m.AssistDraftsTotal.WithLabelValues("previsit", SourceModel)); v != 1 {
		t.Errorf("expected model draft counter 1, got %v", v)
	}
}

func TestService_Summarize_FallbackOnError(t *testing.T) {
	svc, repo, _, _ := newTestService(&stubDrafter{err: errors.New("timeout")})

	res, err := svc.Summarize(context.Background(), caller(), SummarizeInput{Intent: "prescription", Context: "Taking ibuprofen 200 mg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceFallback || !strings.HasPrefix(res.Summary, IntentPrescription.Header()) {
		t.Errorf("expected fallback draft, got %+v", res)
	}
	if !strings.HasSuffix(res.Summary, ClosingNote) {
		t.Error("fallback should end with the closing note")
	}
	if len(repo.notes) != 1 || repo.notes[0].AppointmentID != nil {
		t.Errorf("unexpected saved notes %+v", repo.notes)
	}
}

func TestService_Summarize_NoDrafterOrEmptyDraft(t *testing.T) {
	for _, d := range []Drafter{nil, &stubDrafter{out: "  "}, NewGeminiClient("", "")} {
		svc, _, _, _ := newTestService(d)
		res, err := svc.Summarize(context.Background(), caller(), SummarizeInput{Intent: "next_steps", Context: "Follow up in two weeks"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Source != SourceFallback {
			t.Errorf("%T: expected fallback, got %s", d, res.Source)
		}
	}
}

func TestService_Summarize_Rejections(t *testing.T) {
	svc, repo, _, _ := newTestService(&stubDrafter{out: "x"})
	ctx := context.Background()

	if _, err := svc.Summarize(ctx, auth.Identity{}, SummarizeInput{Intent: "previsit", Context: "x"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("no caller: expected unauthenticated, got %v", err)
	}
	if _, err := svc.Summarize(ctx, caller(), SummarizeInput{Intent: "diagnose", Context: "x"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad intent: expected validation, got %v", err)
	}
	if _, err := svc.Summarize(ctx, caller(), SummarizeInput{Intent: "previsit", Context: "  "}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("empty context: expected validation, got %v", err)
	}
	if _, err := svc.Summarize(ctx, caller(), SummarizeInput{Intent: "previsit", Context: "x", AppointmentID: "abc"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bad appointment id: expected validation, got %v", err)
	}
	if _, err := svc.Summarize(ctx, caller(), SummarizeInput{Intent: "previsit", Context: "x", AppointmentID: uuid.NewString()}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("foreign appointment: expected forbidden, got %v", err)
	}
	if len(repo.notes) != 0 {
		t.Errorf("nothing should be saved, got %d", len(repo.notes))
	}
}

func TestService_Summarize_StoreError(t *testing.T) {
	svc, repo, _, _ := newTestService(nil)
	repo.err = errors.New("insert failed")
	_, err := svc.Summarize(context.Background(), caller(), SummarizeInput{Intent: "previsit", Context: "Dizzy spells"})
	if !errors.Is(err, apperr.ErrStore) {
		t.Errorf("expected store error, got %v", err)
	}
}
