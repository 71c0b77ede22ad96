package serverhttp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"supplymatch/internal"
	"supplymatch/internal/config"
	"supplymatch/internal/ingest"
	"supplymatch/internal/middleware"
	"supplymatch/internal/pipeline"
	"supplymatch/internal/storage"
)

const approvedPageSize = 50

type Handler struct {
	cfg config.Config
	db  *storage.DB
	svc *pipeline.ProcessingService
	log zerolog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("rid", middleware.GetRequestID(r)).Str("path", r.URL.Path).Msg("request failed")
	}
	middleware.WriteError(w, r, status, err.Error())
}

// failStore maps store errors onto 404 or 500.
func (h *Handler) failStore(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.fail(w, r, http.StatusNotFound, err)
		return
	}
	h.fail(w, r, http.StatusInternalServerError, err)
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.db.ListUploads(r.Context(), 100)
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	if uploads == nil {
		uploads = []internal.Upload{}
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, http.StatusRequestEntityTooLarge, err)
			return
		}
		h.fail(w, r, http.StatusBadRequest, errors.New("missing file: "+err.Error()))
		return
	}
	defer file.Close()

	if !ingest.Supported(header.Filename) {
		h.fail(w, r, http.StatusBadRequest, ingest.ErrUnsupported)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := h.svc.ProcessUpload(r.Context(), header.Filename, content)
	if err != nil {
		if errors.Is(err, pipeline.ErrDecode) {
			h.fail(w, r, http.StatusBadRequest, err)
			return
		}
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) Rematch(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Rematch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.db.GetUpload(r.Context(), id); err != nil {
		h.failStore(w, r, err)
		return
	}
	runs, err := h.db.RunsByUpload(r.Context(), id)
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Results(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// pricing reads markups from a JSON body on POST, or from ?markup= otherwise.
func pricing(r *http.Request) (pipeline.Pricing, error) {
	var p pipeline.Pricing
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return p, pipeline.ErrInvalidMarkup
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("markup")); raw != "" {
		m, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, pipeline.ErrInvalidMarkup
		}
		p.Markup = &m
	}
	return p, p.Validate()
}

func (h *Handler) Comparison(w http.ResponseWriter, r *http.Request) {
	p, err := pricing(r)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	upload, c, err := h.svc.Comparison(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"upload": upload, "comparison": c})
}

func (h *Handler) Proposal(w http.ResponseWriter, r *http.Request) {
	p, err := pricing(r)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	prop, err := h.svc.Proposal(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

type approveRequest struct {
	ProductID  int64  `json:"product_id"`
	ApprovedBy string `json:"approved_by"`
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		h.fail(w, r, http.StatusBadRequest, errors.New("product_id required"))
		return
	}
	item, err := h.svc.Approve(r.Context(), id, req.ProductID, req.ApprovedBy)
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	item, err := h.svc.Reject(r.Context(), id)
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type approvedPage struct {
	Items []internal.ApprovedMatch `json:"items"`
	Total int                      `json:"total"`
	Page  int                      `json:"page"`
}

func (h *Handler) ListApproved(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			h.fail(w, r, http.StatusBadRequest, errors.New("invalid page"))
			return
		}
		page = p
	}
	items, total, err := h.db.ListApprovedMatches(r.Context(), r.URL.Query().Get("q"), approvedPageSize, (page-1)*approvedPageSize)
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	if items == nil {
		items = []internal.ApprovedMatch{}
	}
	writeJSON(w, http.StatusOK, approvedPage{Items: items, Total: total, Page: page})
}

func (h *Handler) PutApproved(w http.ResponseWriter, r *http.Request) {
	var req internal.ApprovedMatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	req.ExternalSKU = strings.TrimSpace(req.ExternalSKU)
	if req.ExternalSKU == "" || req.ProductID <= 0 {
		h.fail(w, r, http.StatusBadRequest, errors.New("external_sku and product_id required"))
		return
	}
	if _, err := h.db.GetProduct(r.Context(), req.ProductID); err != nil {
		h.failStore(w, r, err)
		return
	}
	saved, err := h.db.UpsertApprovedMatch(r.Context(), req)
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) DeleteApproved(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteApprovedMatch(r.Context(), chi.URLParam(r, "sku")); err != nil {
		h.failStore(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type suggestionsResponse struct {
	Entry       internal.CatalogEntry `json:"entry"`
	Suggestions []pipeline.Suggestion `json:"suggestions"`
}

func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	entry, list, err := h.svc.Suggestions(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.failStore(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Entry: entry, Suggestions: list})
}

const (
	searchLimit   = 50
	minSearchTerm = 2
)

// SearchCatalog needs a term of at least two characters or one of the filters.
func (h *Handler) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := storage.CatalogQuery{
		Q:            strings.TrimSpace(q.Get("q")),
		Category:     strings.TrimSpace(q.Get("category")),
		Manufacturer: strings.TrimSpace(q.Get("manufacturer")),
		Limit:        searchLimit,
	}
	if raw := q.Get("unmatched"); raw != "" {
		unmatched, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(w, r, http.StatusBadRequest, errors.New("invalid unmatched"))
			return
		}
		query.Unmatched = unmatched
	}
	entries := []internal.CatalogEntry{}
	if len(query.Q) >= minSearchTerm || query.Category != "" || query.Manufacturer != "" {
		found, err := h.db.SearchCatalog(r.Context(), query)
		if err != nil {
			h.failStore(w, r, err)
			return
		}
		entries = append(entries, found...)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	products := []internal.Product{}
	if len(term) >= minSearchTerm {
		found, err := h.db.SearchProducts(r.Context(), term, searchLimit)
		if err != nil {
			h.failStore(w, r, err)
			return
		}
		products = append(products, found...)
	}
	writeJSON(w, http.StatusOK, products)
}
