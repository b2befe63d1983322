package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/api/metrics"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/ports"
)

// InvoiceHandler handles HTTP requests for the invoice workflow.
type InvoiceHandler struct {
	service ports.InvoiceService
}

func NewInvoiceHandler(service ports.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// GenerateDraft handles POST /v1/billing/invoices/generate. Nothing is
// persisted; the response is a draft preview built from frozen snapshots.
//
// @Summary      Generate an invoice draft from billing snapshots
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      generateDraftRequest  true  "Client and billing period"
// @Success      200      {object}  draftResponse
// @Failure      400      {object}  errorResponse
// @Failure      422      {object}  errorResponse
// @Router       /v1/billing/invoices/generate [post]
func (h *InvoiceHandler) GenerateDraft(c echo.Context) error {
	var req generateDraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date")
	}

	draft, err := h.service.GenerateDraft(c.Request().Context(), req.ClientID, start, end)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDraftResponse(draft))
}

// Create handles POST /v1/billing/invoices.
//
// @Summary      Create an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      createInvoiceRequest  true  "Invoice fields"
// @Success      201      {object}  invoiceResponse
// @Failure      400      {object}  errorResponse
// @Failure      403      {object}  errorResponse
// @Failure      409      {object}  errorResponse
// @Router       /v1/billing/invoices [post]
func (h *InvoiceHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req createInvoiceRequest
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

	inv, err := h.service.CreateInvoice(c.Request().Context(), input, actor)
	if err != nil {
		return err
	}

	metrics.InvoicesCreatedTotal.WithLabelValues(string(inv.BillingPeriod.Type)).Inc()
	return c.JSON(http.StatusCreated, toInvoiceResponse(inv))
}

// Get handles GET /v1/billing/invoices/:id.
//
// @Summary      Get an invoice
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      string  true  "Invoice id"
// @Success      200  {object}  invoiceResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/billing/invoices/{id} [get]
func (h *InvoiceHandler) Get(c echo.Context) error {
	inv, err := h.service.GetInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

// List handles GET /v1/billing/invoices.
//
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        client_id  query     string  false  "Filter by client"
// @Param        status     query     string  false  "Filter by status"
// @Param        page       query     int     false  "Page (1-based)"
// @Param        limit      query     int     false  "Page size (max 100)"
// @Success      200        {object}  invoiceListResponse
// @Router       /v1/billing/invoices [get]
func (h *InvoiceHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	filter := ports.InvoiceFilter{
		ClientID: c.QueryParam("client_id"),
		Status:   domain.InvoiceStatus(c.QueryParam("status")),
		Page:     page,
		Limit:    limit,
	}

	invoices, total, err := h.service.ListInvoices(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	return c.JSON(http.StatusOK, invoiceListResponse{
		Invoices: out,
		Total:    total,
		Page:     filter.Page,
		Limit:    filter.Limit,
	})
}

// Submit handles POST /v1/billing/invoices/:id/submit.
//
// @Summary      Submit a draft invoice for approval
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      string  true  "Invoice id"
// @Success      200  {object}  invoiceResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/billing/invoices/{id}/submit [post]
func (h *InvoiceHandler) Submit(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	inv, err := h.service.SubmitForApproval(c.Request().Context(), c.Param("id"), actor.ID)
	if err != nil {
		return err
	}

	metrics.InvoiceTransitionsTotal.WithLabelValues(string(inv.Status)).Inc()
	return c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

// Approval handles POST /v1/billing/invoices/:id/approval.
//
// @Summary      Approve or reject a pending invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string           true  "Invoice id"
// @Param        request  body      approvalRequest  true  "Decision"
// @Success      200      {object}  invoiceResponse
// @Failure      403      {object}  errorResponse
// @Failure      422      {object}  errorResponse
// @Router       /v1/billing/invoices/{id}/approval [post]
func (h *InvoiceHandler) Approval(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inv, err := h.service.ProcessApproval(c.Request().Context(), c.Param("id"), actor.ID, ports.ApprovalAction(req.Action), req.Reason)
	if err != nil {
		return err
	}

	metrics.InvoiceTransitionsTotal.WithLabelValues(string(inv.Status)).Inc()
	return c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

// Send handles POST /v1/billing/invoices/:id/send.
//
// @Summary      Mark an approved invoice as sent
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      string  true  "Invoice id"
// @Success      200  {object}  invoiceResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/billing/invoices/{id}/send [post]
func (h *InvoiceHandler) Send(c echo.Context) error {
	inv, err := h.service.MarkSent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	metrics.InvoiceTransitionsTotal.WithLabelValues(string(inv.Status)).Inc()
	return c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

// Payment handles POST /v1/billing/invoices/:id/payments.
//
// @Summary      Record a payment against an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string          true  "Invoice id"
// @Param        request  body      paymentRequest  true  "Amount received"
// @Success      200      {object}  invoiceResponse
// @Failure      422      {object}  errorResponse
// @Router       /v1/billing/invoices/{id}/payments [post]
func (h *InvoiceHandler) Payment(c echo.Context) error {
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inv, err := h.service.RecordPayment(c.Request().Context(), c.Param("id"), decimal.NewFromFloat(req.Amount))
	if err != nil {
		return err
	}

	metrics.PaymentsRecordedTotal.Inc()
	if inv.Status == domain.StatusPaid {
		metrics.InvoiceTransitionsTotal.WithLabelValues(string(domain.StatusPaid)).Inc()
	}
	return c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

// Cancel handles POST /v1/billing/invoices/:id/cancel.
//
// @Summary      Cancel an invoice
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      string  true  "Invoice id"
// @Success      200  {object}  invoiceResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/billing/invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c echo.Context) error {
	inv, err := h.service.CancelInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	metrics.InvoiceTransitionsTotal.WithLabelValues(string(inv.Status)).Inc()
	return c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

// FlagOverdue handles POST /v1/billing/invoices/flag-overdue. Intended for
// the scheduler; sweeps sent invoices past their due date.
//
// @Summary      Flag sent invoices past their due date as overdue
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  flagOverdueResponse
// @Router       /v1/billing/invoices/flag-overdue [post]
func (h *InvoiceHandler) FlagOverdue(c echo.Context) error {
	n, err := h.service.FlagOverdue(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, flagOverdueResponse{Flagged: n})
}

// LineItems handles GET /v1/billing/invoices/:id/line-items.
//
// @Summary      Get the per-project breakdown of an invoice
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      string  true  "Invoice id"
// @Success      200  {array}   ports.InvoiceLineItem
// @Failure      404  {object}  errorResponse
// @Router       /v1/billing/invoices/{id}/line-items [get]
func (h *InvoiceHandler) LineItems(c echo.Context) error {
	items, err := h.service.LineItems(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []ports.InvoiceLineItem{}
	}
	return c.JSON(http.StatusOK, items)
}

// Dashboard handles GET /v1/billing/invoices/dashboard.
//
// @Summary      Invoice dashboard statistics
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.DashboardStats
// @Router       /v1/billing/invoices/dashboard [get]
func (h *InvoiceHandler) Dashboard(c echo.Context) error {
	stats, err := h.service.DashboardStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
