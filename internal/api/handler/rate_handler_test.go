package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

type stubRateService struct {
	resolveFn func(ctx context.Context, rc ports.RateContext) (*ports.RateCalculation, error)
	createFn  func(ctx context.Context, input ports.CreateRateInput, actorID string) (*domain.BillingRate, error)
}

func (s *stubRateService) Resolve(ctx context.Context, rc ports.RateContext) (*ports.RateCalculation, error) {
	return s.resolveFn(ctx, rc)
}

func (s *stubRateService) Preview(ctx context.Context, rc ports.RateContext) (*ports.RateCalculation, []ports.RateBreakdownLine, error) {
	calc, err := s.resolveFn(ctx, rc)
	if err != nil {
		return nil, nil, err
	}
	return calc, []ports.RateBreakdownLine{{Amount: calc.CalculatedAmount}}, nil
}

func (s *stubRateService) CreateRate(ctx context.Context, input ports.CreateRateInput, actorID string) (*domain.BillingRate, error) {
	return s.createFn(ctx, input, actorID)
}

func (s *stubRateService) UpdateRate(context.Context, string, ports.UpdateRateInput) (*domain.BillingRate, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRateService) DeleteRate(context.Context, string) error {
	return errors.New("not implemented")
}

func (s *stubRateService) ListRates(context.Context, domain.EntityType, string) ([]*domain.BillingRate, error) {
	return nil, errors.New("not implemented")
}

func newRateContext(t *testing.T, e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/billing/rates/resolve", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateHandler_Resolve_Success(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()

	stub := &stubRateService{
		resolveFn: func(_ context.Context, rc ports.RateContext) (*ports.RateCalculation, error) {
			if rc.ProjectID != "project_1" {
				t.Fatalf("unexpected project: %s", rc.ProjectID)
			}
			if rc.DayOfWeek != 3 { // 2025-03-12 is a Wednesday
				t.Fatalf("expected day_of_week derived from date, got %d", rc.DayOfWeek)
			}
			return &ports.RateCalculation{
				EffectiveRate:    decimal.NewFromInt(75),
				BaseRate:         decimal.NewFromInt(75),
				Multiplier:       decimal.NewFromInt(1),
				CalculatedAmount: decimal.NewFromInt(300),
				AdjustedHours:    decimal.NewFromInt(4),
				Source: ports.RateSource{
					EntityType: domain.EntityProject,
					EntityID:   "project_1",
					RateID:     "rate_1",
				},
			}, nil
		},
	}
	h := NewRateHandler(stub)

	c, rec := newRateContext(t, e, `{"project_id":"project_1","date":"2025-03-12","hours":4}`)
	if err := h.Resolve(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	source, ok := resp["rate_source"].(map[string]any)
	if !ok {
		t.Fatalf("expected rate_source in response")
	}
	if source["entity_type"] != "project" {
		t.Fatalf("unexpected source: %+v", source)
	}
}

func TestRateHandler_Resolve_NotFoundPropagates(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()

	stub := &stubRateService{
		resolveFn: func(context.Context, ports.RateContext) (*ports.RateCalculation, error) {
			return nil, domain.ErrRateNotFound
		},
	}
	h := NewRateHandler(stub)

	c, _ := newRateContext(t, e, `{"date":"2025-03-12","hours":4}`)
	err := h.Resolve(c)
	if !errors.Is(err, domain.ErrRateNotFound) {
		t.Fatalf("expected ErrRateNotFound, got %v", err)
	}
}

func TestRateHandler_Resolve_RejectsBadPayload(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()

	stub := &stubRateService{
		resolveFn: func(context.Context, ports.RateContext) (*ports.RateCalculation, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewRateHandler(stub)

	for _, body := range []string{
		`{"date":"not-a-date","hours":4}`,
		`{"date":"2025-03-12"}`,
		`not-json`,
	} {
		c, _ := newRateContext(t, e, body)
		err := h.Resolve(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %v", body, err)
		}
	}
}

func TestRateHandler_Create_UsesActorFromContext(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()

	stub := &stubRateService{
		createFn: func(_ context.Context, input ports.CreateRateInput, actorID string) (*domain.BillingRate, error) {
			if actorID != "admin_1" {
				t.Fatalf("expected actor admin_1, got %s", actorID)
			}
			if input.EntityType != domain.EntityGlobal {
				t.Fatalf("unexpected entity type %s", input.EntityType)
			}
			return &domain.BillingRate{
				ID:           "rate_1",
				EntityType:   input.EntityType,
				StandardRate: input.StandardRate,
				IsActive:     true,
				CreatedBy:    actorID,
			}, nil
		},
	}
	h := NewRateHandler(stub)

	body := `{"entity_type":"global","standard_rate":75,"effective_from":"2025-01-01"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/billing/rates", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "admin_1")
	c.Set("role", domain.RoleSuperAdmin)

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestRateHandler_Create_MissingClaims(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()
	h := NewRateHandler(&stubRateService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/billing/rates", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
