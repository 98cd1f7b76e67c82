package controller

import (
	"fmt"
	"net/http"

	"github.com/cassiomorais/realestate/internal/jobs"
	"github.com/cassiomorais/realestate/internal/service"
	"github.com/go-chi/chi/v5"
)

// PurchaseController starts checkouts and exposes their background jobs.
type PurchaseController struct {
	purchaseService *service.PurchaseService
	jobService      *service.PaymentJobService
	authz           *service.AuthzService
}

func NewPurchaseController(
	purchaseService *service.PurchaseService,
	jobService *service.PaymentJobService,
	authz *service.AuthzService,
) *PurchaseController {
	return &PurchaseController{
		purchaseService: purchaseService,
		jobService:      jobService,
		authz:           authz,
	}
}

// Purchase handles POST /api/v1/properties/{id}/purchase. It answers 202 as
// soon as the payment job is queued; clients poll the job for the outcome.
func (h *PurchaseController) Purchase(w http.ResponseWriter, r *http.Request) {
	propertyID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	buyerID, err := h.authz.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.purchaseService.Purchase(r.Context(), buyerID, propertyID)
	if err != nil {
		writeError(w, err)
		return
	}

	statusURL := fmt.Sprintf("/api/v1/jobs/%s", res.JobID)
	w.Header().Set("Location", statusURL)
	writeJSON(w, http.StatusAccepted, PurchaseResponse{
		JobID:     res.JobID,
		PaymentID: res.PaymentID,
		StatusURL: statusURL,
	})
}

// Job handles GET /api/v1/jobs/{id}
func (h *PurchaseController) Job(w http.ResponseWriter, r *http.Request) {
	view := h.jobService.GetJobStatus(r.Context(), chi.URLParam(r, "id"))
	if view.Status == jobs.StatusNotFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": string(jobs.StatusNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// MyPayments handles GET /api/v1/me/payments
func (h *PurchaseController) MyPayments(w http.ResponseWriter, r *http.Request) {
	buyerID, err := h.authz.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	limit, offset := pagination(r)

	payments, err := h.purchaseService.ListPayments(r.Context(), buyerID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, FromPayment(p))
	}
	writeJSON(w, http.StatusOK, resp)
}
