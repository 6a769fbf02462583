package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumora-sms/lumora/internal/platform/httpx"
	"github.com/lumora-sms/lumora/internal/rbac"
	"github.com/lumora-sms/lumora/internal/roster"
	"github.com/lumora-sms/lumora/internal/shared"
)

const dueDateLayout = "2006-01-02"

// MetricsRecorder counts billing domain events. Satisfied by
// observability.Metrics.
type MetricsRecorder interface {
	PaymentRecorded(method string)
	InvoicesCreated(n int)
}

// Handler manages billing endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	cache    *DetailCache
	metrics  MetricsRecorder
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cache *DetailCache, metrics MetricsRecorder, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		cache:    cache,
		metrics:  metrics,
		rbac:     rbacMW,
	}
}

// MountRoutes registers billing routes. Capability enforcement lives in the
// service; the route guard only requires an authenticated user.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireUser)

		r.Post("/invoices", h.createInvoice)
		r.Post("/invoices/generate", h.generateForClass)
		r.Get("/invoices/{invoiceID}", h.invoiceDetail)
		r.Patch("/invoices/{invoiceID}", h.updateInvoice)
		r.Delete("/invoices/{invoiceID}", h.deleteInvoice)
		r.Post("/invoices/{invoiceID}/items", h.addItems)
		r.Patch("/invoices/{invoiceID}/items/{itemID}", h.updateItem)
		r.Delete("/invoices/{invoiceID}/items", h.removeItems)
		r.Post("/invoices/{invoiceID}/payments", h.recordPayment)
		r.Post("/invoices/{invoiceID}/remind", h.remind)
		r.Get("/classes/{classID}/invoices", h.listByClass)
		r.Get("/classes/{classID}/summary", h.classSummary)
		r.Get("/students/{studentID}/invoices", h.listByStudent)
	})
}

type itemDraftRequest struct {
	Label  string  `json:"label" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type createInvoiceRequest struct {
	StudentID      int64              `json:"student_id" validate:"required,gt=0"`
	Period         string             `json:"period" validate:"required"`
	AcademicYearID int64              `json:"academic_year_id" validate:"required,gt=0"`
	DueDate        string             `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes          string             `json:"notes"`
	Items          []itemDraftRequest `json:"items" validate:"required,min=1,dive"`
}

type generateForClassRequest struct {
	ClassID        int64              `json:"class_id" validate:"required,gt=0"`
	Period         string             `json:"period" validate:"required"`
	AcademicYearID int64              `json:"academic_year_id" validate:"required,gt=0"`
	DueDate        string             `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Items          []itemDraftRequest `json:"items" validate:"required,min=1,dive"`
}

type updateInvoiceRequest struct {
	DueDate *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes   *string `json:"notes"`
}

type updateItemRequest struct {
	Label  *string  `json:"label"`
	Amount *float64 `json:"amount" validate:"omitempty,gt=0"`
}

type removeItemsRequest struct {
	ItemIDs []int64 `json:"item_ids" validate:"required,min=1"`
}

type recordPaymentRequest struct {
	ItemID    *int64  `json:"item_id" validate:"omitempty,gt=0"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required"`
	PaidAt    string  `json:"paid_at" validate:"omitempty"`
	ReceiptNo string  `json:"receipt_no"`
	Remarks   string  `json:"remarks"`
}

type invoiceResponse struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"student_id"`
	Period         string    `json:"period"`
	AcademicYearID int64     `json:"academic_year_id"`
	DueDate        string    `json:"due_date,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Total          float64   `json:"total"`
	Paid           float64   `json:"paid"`
	Status         FeeStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type itemResponse struct {
	ID     int64   `json:"id"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

type paymentResponse struct {
	ID             int64     `json:"id"`
	ItemID         *int64    `json:"item_id,omitempty"`
	ItemLabel      string    `json:"item_label,omitempty"`
	Amount         float64   `json:"amount"`
	Method         string    `json:"method"`
	PaidAt         time.Time `json:"paid_at"`
	ReceiptNo      string    `json:"receipt_no,omitempty"`
	Remarks        string    `json:"remarks,omitempty"`
	RecordedBy     int64     `json:"recorded_by"`
	RecordedByName string    `json:"recorded_by_name,omitempty"`
}

type detailResponse struct {
	invoiceResponse
	StudentName string            `json:"student_name,omitempty"`
	Items       []itemResponse    `json:"items"`
	Payments    []paymentResponse `json:"payments"`
	Balance     float64           `json:"balance"`
}

func toInvoiceResponse(inv Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:             inv.ID,
		StudentID:      inv.StudentID,
		Period:         inv.Period,
		AcademicYearID: inv.AcademicYearID,
		Notes:          inv.Notes,
		Total:          inv.Total,
		Paid:           inv.Paid,
		Status:         inv.Status,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
	if !inv.DueDate.IsZero() {
		resp.DueDate = inv.DueDate.Format(dueDateLayout)
	}
	return resp
}

func toDetailResponse(detail *InvoiceDetail) detailResponse {
	resp := detailResponse{
		invoiceResponse: toInvoiceResponse(detail.Invoice),
		StudentName:     detail.StudentName,
		Items:           make([]itemResponse, 0, len(detail.Items)),
		Payments:        make([]paymentResponse, 0, len(detail.Payments)),
		Balance:         detail.Balance,
	}
	for _, item := range detail.Items {
		resp.Items = append(resp.Items, itemResponse{ID: item.ID, Label: item.Label, Amount: item.Amount})
	}
	for _, p := range detail.Payments {
		resp.Payments = append(resp.Payments, paymentResponse{
			ID:             p.ID,
			ItemID:         p.ItemID,
			ItemLabel:      p.ItemLabel,
			Amount:         p.Amount,
			Method:         p.Method,
			PaidAt:         p.PaidAt,
			ReceiptNo:      p.ReceiptNo,
			Remarks:        p.Remarks,
			RecordedBy:     p.RecordedBy,
			RecordedByName: p.RecordedByName,
		})
	}
	return resp
}

func (h *Handler) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validate.Struct(target)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var amountErr *PaymentAmountError
	var paymentsErr *HasPaymentsError
	switch {
	case errors.Is(err, ErrAccessDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have access to this resource")
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrItemNotFound), errors.Is(err, roster.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &amountErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Payment Exceeds Balance", amountErr.Error())
	case errors.As(err, &paymentsErr):
		httpx.Problem(w, http.StatusConflict, "Invoice Has Payments", paymentsErr.Error())
	case errors.Is(err, ErrItemMismatch), errors.Is(err, ErrInvalidItems),
		errors.Is(err, ErrYearMismatch), errors.Is(err, ErrTotalBelowPaid),
		errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("billing request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func toDrafts(reqs []itemDraftRequest) []ItemDraft {
	drafts := make([]ItemDraft, 0, len(reqs))
	for _, r := range reqs {
		drafts = append(drafts, ItemDraft{Label: r.Label, Amount: r.Amount})
	}
	return drafts
}

func parseDueDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dueDateLayout, value)
	return t
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.Create(r.Context(), actor, CreateInvoiceInput{
		StudentID:      req.StudentID,
		Period:         req.Period,
		AcademicYearID: req.AcademicYearID,
		DueDate:        parseDueDate(req.DueDate),
		Notes:          req.Notes,
		Items:          toDrafts(req.Items),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.InvoicesCreated(1)
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(*inv))
}

func (h *Handler) generateForClass(w http.ResponseWriter, r *http.Request) {
	var req generateForClassRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	result, err := h.service.GenerateForClass(r.Context(), actor, GenerateForClassInput{
		ClassID:        req.ClassID,
		Period:         req.Period,
		AcademicYearID: req.AcademicYearID,
		DueDate:        parseDueDate(req.DueDate),
		Items:          toDrafts(req.Items),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.InvoicesCreated(result.Created)
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"created":     result.Created,
		"skipped":     result.Skipped,
		"invoice_ids": result.InvoiceIDs,
	})
}

func (h *Handler) invoiceDetail(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlID(r, "invoiceID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.AuthorizeView(r.Context(), actor, invoiceID); err != nil {
		h.respondError(w, r, err)
		return
	}
	if cached := h.cache.Get(r.Context(), invoiceID); cached != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cached)
		return
	}
	detail, err := h.service.GetDetail(r.Context(), actor, invoiceID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := toDetailResponse(detail)
	h.cache.Set(r.Context(), invoiceID, resp)
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlID(r, "invoiceID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	var req updateInvoiceRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	patch := InvoicePatch{Notes: req.Notes}
	if req.DueDate != nil {
		due := parseDueDate(*req.DueDate)
		patch.DueDate = &due
	}
	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.Update(r.Context(), actor, invoiceID, patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), invoiceID)
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*inv))
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlID(r, "invoiceID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, invoiceID); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), invoiceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlID(r, "invoiceID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	var req struct {
		Items []itemDraftRequest `json:"items" validate:"required,min=1,dive"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.AddItems(r.Context(), actor, invoiceID, toDrafts(req.Items))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), invoiceID)
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*inv))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlID(r, "invoiceID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	itemID, ok := urlID(r, "itemID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req updateItemRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.UpdateItem(r.Context(), actor, invoiceID, itemID, ItemPatch{Label: req.Label, Amount: req.Amount})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), invoiceID)
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*inv))
}

func (h *Handler) removeItems(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlID(r, "invoiceID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	var req removeItemsRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.RemoveItems(r.Context(), actor, invoiceID, req.ItemIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), invoiceID)
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(*inv))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlID(r, "invoiceID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	var req recordPaymentRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var paidAt time.Time
	if req.PaidAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "paid_at must be RFC3339")
			return
		}
		paidAt = parsed
	}
	actor := shared.ActorFromContext(r.Context())
	payment, err := h.service.RecordPayment(r.Context(), actor, RecordPaymentInput{
		InvoiceID: invoiceID,
		ItemID:    req.ItemID,
		Amount:    req.Amount,
		Method:    req.Method,
		PaidAt:    paidAt,
		ReceiptNo: req.ReceiptNo,
		Remarks:   req.Remarks,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), invoiceID)
	if h.metrics != nil {
		h.metrics.PaymentRecorded(payment.Method)
	}
	httpx.JSON(w, http.StatusCreated, paymentResponse{
		ID:         payment.ID,
		ItemID:     payment.ItemID,
		Amount:     payment.Amount,
		Method:     payment.Method,
		PaidAt:     payment.PaidAt,
		ReceiptNo:  payment.ReceiptNo,
		Remarks:    payment.Remarks,
		RecordedBy: payment.RecordedBy,
	})
}

func (h *Handler) remind(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := urlID(r, "invoiceID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.Remind(r.Context(), actor, invoiceID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) listByClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := urlID(r, "classID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid class id")
		return
	}
	period := r.URL.Query().Get("period")
	var yearID int64
	if raw := r.URL.Query().Get("academic_year_id"); raw != "" {
		yearID, _ = strconv.ParseInt(raw, 10, 64)
	}
	actor := shared.ActorFromContext(r.Context())
	invoices, err := h.service.ListByClass(r.Context(), actor, classID, period, yearID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		resp = append(resp, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) classSummary(w http.ResponseWriter, r *http.Request) {
	classID, ok := urlID(r, "classID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid class id")
		return
	}
	period := r.URL.Query().Get("period")
	var yearID int64
	if raw := r.URL.Query().Get("academic_year_id"); raw != "" {
		yearID, _ = strconv.ParseInt(raw, 10, 64)
	}
	actor := shared.ActorFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), actor, classID, period, yearID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"counts":       summary.Counts,
		"total_billed": summary.TotalBilled,
		"total_paid":   summary.TotalPaid,
		"outstanding":  summary.Outstanding,
	})
}

func (h *Handler) listByStudent(w http.ResponseWriter, r *http.Request) {
	studentID, ok := urlID(r, "studentID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid student id")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	invoices, err := h.service.ListByStudent(r.Context(), actor, studentID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		resp = append(resp, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, resp)
}
