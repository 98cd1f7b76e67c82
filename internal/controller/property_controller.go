package controller

import (
	"io"
	"net/http"
	"strconv"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/service"
)

const maxUploadBytes = 10 << 20

// PropertyController handles listing CRUD and photos.
type PropertyController struct {
	propertyService *service.PropertyService
}

func NewPropertyController(propertyService *service.PropertyService) *PropertyController {
	return &PropertyController{propertyService: propertyService}
}

// List handles GET /api/v1/properties
func (h *PropertyController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := property.ListFilter{Query: q.Get("q")}
	filter.Limit, filter.Offset = pagination(r)

	var err error
	if filter.MinPrice, err = priceParam(q.Get("min_price"), "min_price"); err != nil {
		writeError(w, err)
		return
	}
	if filter.MaxPrice, err = priceParam(q.Get("max_price"), "max_price"); err != nil {
		writeError(w, err)
		return
	}
	if s := q.Get("sold"); s != "" {
		sold, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, domainErrors.NewValidationError("sold", "must be true or false"))
			return
		}
		filter.Sold = &sold
	}

	props, err := h.propertyService.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*PropertyResponse, 0, len(props))
	for _, p := range props {
		resp = append(resp, FromProperty(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/properties/{id}
func (h *PropertyController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.propertyService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromProperty(p))
}

// Create handles POST /api/v1/properties
func (h *PropertyController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	price, err := floatToCents(req.Price)
	if err != nil {
		writeError(w, domainErrors.NewValidationError("price", err.Error()))
		return
	}

	p, err := h.propertyService.Create(r.Context(), property.Details{
		Title:        req.Title,
		Description:  req.Description,
		Price:        price,
		Address:      req.Address,
		SquareMeters: req.SquareMeters,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		ParkingSpots: req.ParkingSpots,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromProperty(p))
}

// Update handles PUT /api/v1/properties/{id}
func (h *PropertyController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdatePropertyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	u := property.Update{Title: req.Title, Description: req.Description, Address: req.Address}
	if req.Price != nil {
		price, err := floatToCents(*req.Price)
		if err != nil {
			writeError(w, domainErrors.NewValidationError("price", err.Error()))
			return
		}
		u.Price = &price
	}

	p, err := h.propertyService.Update(r.Context(), id, u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromProperty(p))
}

// Delete handles DELETE /api/v1/properties/{id}
func (h *PropertyController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.propertyService.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadPhoto handles POST /api/v1/properties/{id}/photo (multipart field "photo").
func (h *PropertyController) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, domainErrors.NewValidationError("photo", "multipart file is required"))
		return
	}
	defer file.Close()

	key, err := h.propertyService.UploadPhoto(r.Context(), id, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PhotoResponse{Key: key, PhotoURL: photoURL(id)})
}

// Photo handles GET /api/v1/properties/{id}/photo
func (h *PropertyController) Photo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	rc, err := h.propertyService.OpenPhoto(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	// Sniff the type from the first bytes; thumbnails are PNG or JPEG.
	head := make([]byte, 512)
	n, _ := io.ReadFull(rc, head)
	w.Header().Set("Content-Type", http.DetectContentType(head[:n]))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(head[:n])
	io.Copy(w, rc)
}

func priceParam(s, name string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, domainErrors.NewValidationError(name, "must be a number")
	}
	cents, err := floatToCents(f)
	if err != nil {
		return nil, domainErrors.NewValidationError(name, err.Error())
	}
	return &cents, nil
}
