package controller

import (
	"time"

	"payment-records/internal/model"
	"payment-records/internal/service"
)

type PaymentResponse struct {
	ID               int64               `json:"id"`
	UserID           int64               `json:"user_id"`
	UserName         string              `json:"user_name"`
	PaymentType      model.PaymentMethod `json:"payment_type"`
	PaymentTypeLabel string              `json:"payment_type_label"`
	Amount           string              `json:"amount"`
	AmountDisplay    string              `json:"amount_display"`
	PaymentDate      model.Date          `json:"payment_date"`
	NextRenewDate    model.Date          `json:"next_renew_date"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	CanEdit          bool                `json:"can_edit"`
	CanDelete        bool                `json:"can_delete"`
}

func newPaymentResponse(item *service.PaymentItem) PaymentResponse {
	return PaymentResponse{
		ID:               item.ID,
		UserID:           item.UserID,
		UserName:         item.UserName,
		PaymentType:      item.PaymentType,
		PaymentTypeLabel: item.PaymentType.Label(),
		Amount:           item.Amount.StringFixed(2),
		AmountDisplay:    model.FormatNPR(item.Amount),
		PaymentDate:      item.PaymentDate,
		NextRenewDate:    item.NextRenewDate,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
		CanEdit:          item.CanEdit,
		CanDelete:        item.CanDelete,
	}
}

type PaymentListResponse struct {
	Data          []PaymentResponse `json:"data"`
	Total         int64             `json:"total"`
	Page          int               `json:"page"`
	PageSize      int               `json:"pageSize"`
	TotalPages    int               `json:"totalPages"`
	CanBulkDelete bool              `json:"can_bulk_delete"`
}

func newPaymentListResponse(page *service.PaymentPage) PaymentListResponse {
	resp := PaymentListResponse{
		Data:          make([]PaymentResponse, 0, len(page.Items)),
		Total:         page.Total,
		Page:          page.Page,
		PageSize:      page.PageSize,
		TotalPages:    page.TotalPages(),
		CanBulkDelete: page.CanBulkDelete,
	}
	for i := range page.Items {
		resp.Data = append(resp.Data, newPaymentResponse(&page.Items[i]))
	}
	return resp
}
