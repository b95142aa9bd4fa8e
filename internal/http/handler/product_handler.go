package handler

import (
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storefrontlab/storefront-api/internal/http/middleware"
	"github.com/storefrontlab/storefront-api/internal/http/response"
	"github.com/storefrontlab/storefront-api/internal/observability"
	"github.com/storefrontlab/storefront-api/internal/repository"
	"github.com/storefrontlab/storefront-api/internal/service"
)

// multipart parts stay on disk past this threshold; image uploads are capped
// well below the route body limit anyway.
const multipartMemoryLimit = 4 << 20

type ProductHandler struct {
	svc service.ProductService
}

func NewProductHandler(svc service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}

	input, cleanup, err := decodeCreateInput(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	defer cleanup()

	created, err := h.svc.Create(r.Context(), actorID, *input)
	if err != nil {
		writeProductError(w, r, err, "failed to create product")
		return
	}

	observability.Audit(r, "product.create", "user_id", actorID, "product_id", created.ID)
	response.JSON(w, r, http.StatusCreated, created)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}

	products, err := h.svc.List(r.Context(), actorID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list products", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"products": products})
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	product, err := h.svc.GetByID(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	input, cleanup, err := decodeUpdateInput(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	defer cleanup()

	updated, err := h.svc.Update(r.Context(), actorID, productID, *input)
	if err != nil {
		writeProductError(w, r, err, "failed to update product")
		return
	}

	observability.Audit(r, "product.update", "user_id", actorID, "product_id", productID)
	response.JSON(w, r, http.StatusOK, updated)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	productID, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	if err := h.svc.Delete(r.Context(), actorID, productID); err != nil {
		writeProductError(w, r, err, "failed to delete product")
		return
	}

	observability.Audit(r, "product.delete", "user_id", actorID, "product_id", productID)
	response.NoContent(w)
}

func writeProductError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		response.Error(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "validation failed", ve.Fields)
	case errors.Is(err, repository.ErrProductNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, service.ErrNotProductOwner):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "product belongs to another user", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", fallback, nil)
	}
}

func decodeCreateInput(r *http.Request) (*service.CreateProductInput, func(), error) {
	noop := func() {}
	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
			return nil, noop, errors.New("invalid multipart payload")
		}
		cleanup := func() { _ = r.MultipartForm.RemoveAll() }

		input := &service.CreateProductInput{
			Name:  r.FormValue("name"),
			Price: parsePriceField(r.FormValue("price")),
		}
		if vals, ok := r.MultipartForm.Value["description"]; ok && len(vals) > 0 {
			input.Description = &vals[0]
		}
		image, imgCleanup, err := formImage(r)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		input.Image = image
		return input, func() { imgCleanup(); cleanup() }, nil
	}

	var body struct {
		Name        string      `json:"name"`
		Price       json.Number `json:"price"`
		Description *string     `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, noop, errors.New("invalid payload")
	}
	return &service.CreateProductInput{
		Name:        body.Name,
		Price:       parsePriceField(body.Price.String()),
		Description: body.Description,
	}, noop, nil
}

func decodeUpdateInput(r *http.Request) (*service.UpdateProductInput, func(), error) {
	noop := func() {}
	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
			return nil, noop, errors.New("invalid multipart payload")
		}
		cleanup := func() { _ = r.MultipartForm.RemoveAll() }

		input := &service.UpdateProductInput{}
		if vals, ok := r.MultipartForm.Value["name"]; ok && len(vals) > 0 {
			input.Name = &vals[0]
		}
		if vals, ok := r.MultipartForm.Value["price"]; ok && len(vals) > 0 {
			price := parsePriceField(vals[0])
			input.Price = &price
		}
		if vals, ok := r.MultipartForm.Value["description"]; ok && len(vals) > 0 {
			input.Description = &vals[0]
		}
		image, imgCleanup, err := formImage(r)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		input.Image = image
		return input, func() { imgCleanup(); cleanup() }, nil
	}

	var body struct {
		Name        *string      `json:"name"`
		Price       *json.Number `json:"price"`
		Description *string      `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, noop, errors.New("invalid payload")
	}
	input := &service.UpdateProductInput{Name: body.Name, Description: body.Description}
	if body.Price != nil {
		price := parsePriceField(body.Price.String())
		input.Price = &price
	}
	return input, noop, nil
}

// formImage extracts the optional image part. An absent part means "no
// image", never "remove image".
func formImage(r *http.Request) (*service.ImageUpload, func(), error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, errors.New("invalid image upload")
	}
	return &service.ImageUpload{Reader: file, Size: header.Size}, func() { _ = file.Close() }, nil
}

func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "multipart/form-data"
}

// parsePriceField maps absent or non-numeric prices to NaN so they fail
// field validation downstream instead of short-circuiting as a bad request.
func parsePriceField(raw string) float64 {
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return price
}

func parsePathID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
