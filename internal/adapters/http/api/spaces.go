package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	service "github.com/genieiq/genieiq/internal/app"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/types"
)

// SpacesHandler serves per-space reads, scans and stars.
type SpacesHandler struct {
	deps Dependencies
}

// NewSpacesHandler creates a new spaces handler.
func NewSpacesHandler(deps Dependencies) *SpacesHandler {
	return &SpacesHandler{deps: deps}
}

type scanRequest struct {
	ForceRefreshUC bool `json:"forceRefreshUc"`
}

type starRequest struct {
	Starred *bool `json:"starred"`
}

type starResponse struct {
	SpaceID string `json:"spaceId"`
	Starred bool   `json:"starred"`
}

// HandleList handles GET /api/spaces.
func (h *SpacesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	f, err := listFilterFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	page, err := h.deps.ListLatest(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if page.Rows == nil {
		page.Rows = []types.LatestRow{}
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGet handles GET /api/spaces/{id}.
func (h *SpacesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	row, err := h.deps.GetLatest(r.Context(), r.PathValue("id"), userFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// HandleScan handles POST /api/spaces/{id}/scan. forceRefreshUc may come
// from the query string or the JSON body.
func (h *SpacesHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	force, err := boolParam(r, "forceRefreshUc")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req scanRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	res, err := h.deps.ScanOne(r.Context(), r.PathValue("id"), service.ScanOptions{ForceRefreshUC: force || req.ForceRefreshUC})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleHistory handles GET /api/spaces/{id}/history.
func (h *SpacesHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rows, err := h.deps.GetHistory(r.Context(), r.PathValue("id"), days, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []model.HistoryRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleStar handles PUT /api/spaces/{id}/star. The caller is identified by
// the proxy-provided email header.
func (h *SpacesHandler) HandleStar(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", ErrMissingUser)
		return
	}
	var req starRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if req.Starred == nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: starred is required", ErrBadRequest))
		return
	}
	id := r.PathValue("id")
	if err := h.deps.SetStar(r.Context(), id, user, *req.Starred); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, starResponse{SpaceID: id, Starred: *req.Starred})
}

func listFilterFrom(r *http.Request) (types.ListFilter, error) {
	q := r.URL.Query()
	f := types.ListFilter{
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Owner:    q.Get("owner"),
		Maturity: model.Maturity(strings.ToLower(strings.TrimSpace(q.Get("maturity")))),
		User:     userFrom(r),
	}
	var err error
	if f.StarredOnly, err = boolParam(r, "starred"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

// decodeOptional decodes a JSON body when one is present.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
