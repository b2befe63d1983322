package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Siva2k2k/ES-TM-sub002/internal/api/metrics"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

// RateHandler handles HTTP requests for rate resolution and administration.
type RateHandler struct {
	service ports.RateService
}

func NewRateHandler(service ports.RateService) *RateHandler {
	return &RateHandler{service: service}
}

// Resolve handles POST /v1/billing/rates/resolve.
//
// @Summary      Resolve the billing rate for a work context
// @Tags         rates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      resolveRateRequest  true  "Billing context"
// @Success      200      {object}  resolveRateResponse
// @Failure      400      {object}  errorResponse
// @Failure      422      {object}  errorResponse
// @Router       /v1/billing/rates/resolve [post]
func (h *RateHandler) Resolve(c echo.Context) error {
	var req resolveRateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rc, err := req.toContext()
	if err != nil {
		return err
	}

	calc, err := h.service.Resolve(c.Request().Context(), rc)
	if err != nil {
		if errors.Is(err, domain.ErrRateNotFound) {
			metrics.RateResolutionErrorsTotal.WithLabelValues("not_found").Inc()
		} else if !errors.Is(err, domain.ErrValidation) {
			metrics.RateResolutionErrorsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	metrics.RateResolutionsTotal.WithLabelValues(string(calc.Source.EntityType), multiplierLabel(calc.MultiplierType)).Inc()
	return c.JSON(http.StatusOK, toResolveResponse(calc))
}

// Preview handles POST /v1/billing/rates/preview.
//
// @Summary      Preview a rate calculation with a display breakdown
// @Tags         rates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      resolveRateRequest  true  "Billing context"
// @Success      200      {object}  previewRateResponse
// @Failure      400      {object}  errorResponse
// @Failure      422      {object}  errorResponse
// @Router       /v1/billing/rates/preview [post]
func (h *RateHandler) Preview(c echo.Context) error {
	var req resolveRateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rc, err := req.toContext()
	if err != nil {
		return err
	}

	calc, breakdown, err := h.service.Preview(c.Request().Context(), rc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, previewRateResponse{
		Calculation: toResolveResponse(calc),
		Breakdown:   breakdown,
	})
}

// Create handles POST /v1/billing/rates.
//
// @Summary      Create a billing rate
// @Tags         rates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      createRateRequest  true  "Rate definition"
// @Success      201      {object}  rateResponse
// @Failure      400      {object}  errorResponse
// @Router       /v1/billing/rates [post]
func (h *RateHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req createRateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input, err := req.toInput()
	if err != nil {
		return err
	}

	rate, err := h.service.CreateRate(c.Request().Context(), input, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toRateResponse(rate))
}

// Update handles PUT /v1/billing/rates/:id. The previous version is closed
// and a new one inserted; the response carries the new version.
//
// @Summary      Update a billing rate (creates a new version)
// @Tags         rates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true  "Rate id"
// @Param        request  body      updateRateRequest  true  "Fields to override"
// @Success      200      {object}  rateResponse
// @Failure      404      {object}  errorResponse
// @Router       /v1/billing/rates/{id} [put]
func (h *RateHandler) Update(c echo.Context) error {
	var req updateRateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input, err := req.toInput()
	if err != nil {
		return err
	}

	rate, err := h.service.UpdateRate(c.Request().Context(), c.Param("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRateResponse(rate))
}

// Delete handles DELETE /v1/billing/rates/:id.
//
// @Summary      Soft-delete a billing rate
// @Tags         rates
// @Security     BearerAuth
// @Param        id  path  string  true  "Rate id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/billing/rates/{id} [delete]
func (h *RateHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteRate(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/billing/rates?entity_type=&entity_id=.
//
// @Summary      List the rate version history for a scope
// @Tags         rates
// @Produce      json
// @Security     BearerAuth
// @Param        entity_type  query     string  true   "global, client, project, user, role"
// @Param        entity_id    query     string  false  "Scope id (empty for global)"
// @Success      200          {array}   rateResponse
// @Failure      400          {object}  errorResponse
// @Router       /v1/billing/rates [get]
func (h *RateHandler) List(c echo.Context) error {
	entityType := domain.EntityType(c.QueryParam("entity_type"))
	rates, err := h.service.ListRates(c.Request().Context(), entityType, c.QueryParam("entity_id"))
	if err != nil {
		return err
	}

	out := make([]rateResponse, 0, len(rates))
	for _, r := range rates {
		out = append(out, toRateResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

func multiplierLabel(t string) string {
	if t == "" {
		return "none"
	}
	return t
}
