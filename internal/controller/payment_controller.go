package controller

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"payment-records/internal/model"
	"payment-records/internal/policy"
	"payment-records/internal/repository"
	"payment-records/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PaymentController struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

func NewPaymentController(paymentService service.PaymentService, logger *slog.Logger) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         logger,
	}
}

func (pc *PaymentController) RegisterRoutes(e *echo.Echo, requireActor echo.MiddlewareFunc) {
	payments := e.Group("/api/payments", requireActor)

	payments.GET("/form", pc.GetForm)
	payments.GET("/renew-date", pc.GetRenewDate)
	payments.GET("/export", pc.ExportPayments)
	payments.POST("/bulk-delete", pc.BulkDeletePayments)
	payments.GET("", pc.ListPayments)
	payments.POST("", pc.CreatePayment)
	payments.GET("/:id", pc.GetPayment)
	payments.PUT("/:id", pc.UpdatePayment)
	payments.DELETE("/:id", pc.DeletePayment)
}

type PaymentTypeOption struct {
	Value model.PaymentMethod `json:"value"`
	Label string              `json:"label"`
}

type FormResponse struct {
	Owner             policy.FieldPolicy  `json:"owner"`
	PaymentTypes      []PaymentTypeOption `json:"payment_types"`
	RenewalPeriodDays int                 `json:"renewal_period_days"`
	MinAmount         string              `json:"min_amount"`
	MaxAmount         string              `json:"max_amount"`
}

func (pc *PaymentController) GetForm(c echo.Context) error {
	fp, err := pc.paymentService.OwnerField(c.Request().Context(), actorFrom(c))
	if err != nil {
		return renderError(c, pc.logger, err, "Failed to load payment form")
	}

	resp := FormResponse{
		Owner:             fp,
		PaymentTypes:      make([]PaymentTypeOption, 0, len(model.PaymentMethods)),
		RenewalPeriodDays: policy.RenewalPeriodDays,
		MinAmount:         policy.MinAmount.StringFixed(2),
		MaxAmount:         policy.MaxAmount.StringFixed(2),
	}
	for _, m := range model.PaymentMethods {
		resp.PaymentTypes = append(resp.PaymentTypes, PaymentTypeOption{Value: m, Label: m.Label()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (pc *PaymentController) GetRenewDate(c echo.Context) error {
	d, err := model.ParseDate(c.QueryParam("payment_date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "payment_date must be a date in YYYY-MM-DD format"})
	}

	return c.JSON(http.StatusOK, map[string]model.Date{
		"payment_date":    d,
		"next_renew_date": pc.paymentService.RenewDate(d),
	})
}

func bindListQuery(c echo.Context) (repository.ListQuery, error) {
	q := repository.ListQuery{
		PaymentType: model.PaymentMethod(c.QueryParam("payment_type")),
		Search:      c.QueryParam("search"),
		Sort:        c.QueryParam("sort"),
		Direction:   c.QueryParam("direction"),
	}

	err := echo.QueryParamsBinder(c).
		Int("page", &q.Page).
		Int("pageSize", &q.PageSize).
		BindError()
	if err != nil {
		return q, err
	}

	if q.PaymentType != "" && !q.PaymentType.Valid() {
		return q, fmt.Errorf("unknown payment_type %q", q.PaymentType)
	}
	return q, nil
}

func (pc *PaymentController) ListPayments(c echo.Context) error {
	q, err := bindListQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid query parameters"})
	}

	page, err := pc.paymentService.List(c.Request().Context(), actorFrom(c), q)
	if err != nil {
		return renderError(c, pc.logger, err, "Failed to retrieve payments")
	}

	return c.JSON(http.StatusOK, newPaymentListResponse(page))
}

func (pc *PaymentController) ExportPayments(c echo.Context) error {
	q, err := bindListQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid query parameters"})
	}

	var buf bytes.Buffer
	if err := pc.paymentService.Export(c.Request().Context(), actorFrom(c), q, &buf); err != nil {
		return renderError(c, pc.logger, err, "Failed to export payments")
	}

	filename := fmt.Sprintf("payments-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func paymentID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func (pc *PaymentController) GetPayment(c echo.Context) error {
	id, ok := paymentID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid payment id"})
	}

	item, err := pc.paymentService.Get(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return renderError(c, pc.logger, err, "Failed to retrieve payment")
	}

	return c.JSON(http.StatusOK, newPaymentResponse(item))
}

func (pc *PaymentController) CreatePayment(c echo.Context) error {
	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	item, err := pc.paymentService.Create(c.Request().Context(), actorFrom(c), req.Input())
	if err != nil {
		return renderError(c, pc.logger, err, "Failed to create payment")
	}

	return c.JSON(http.StatusCreated, newPaymentResponse(item))
}

func (pc *PaymentController) UpdatePayment(c echo.Context) error {
	id, ok := paymentID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid payment id"})
	}

	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	item, err := pc.paymentService.Update(c.Request().Context(), actorFrom(c), id, req.Input())
	if err != nil {
		return renderError(c, pc.logger, err, "Failed to update payment")
	}

	return c.JSON(http.StatusOK, newPaymentResponse(item))
}

func (pc *PaymentController) DeletePayment(c echo.Context) error {
	id, ok := paymentID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid payment id"})
	}

	if err := pc.paymentService.Delete(c.Request().Context(), actorFrom(c), id); err != nil {
		return renderError(c, pc.logger, err, "Failed to delete payment")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Payment deleted successfully"})
}

type BulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (pc *PaymentController) BulkDeletePayments(c echo.Context) error {
	var req BulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	n, err := pc.paymentService.BulkDelete(c.Request().Context(), actorFrom(c), req.IDs)
	if err != nil {
		return renderError(c, pc.logger, err, "Failed to delete payments")
	}

	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}
