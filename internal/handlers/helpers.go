package handlers

import (
	"net/http"
	"strconv"

	"github.com/opsdesk/opsdesk/internal/apperr"
	"github.com/opsdesk/opsdesk/internal/models"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apperr.WriteJSON(w, status, data)
}

func pageParams(r *http.Request) (page, perPage, offset int) {
	page = 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	perPage = defaultPerPage
	if pp, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && pp > 0 && pp <= maxPerPage {
		perPage = pp
	}
	return page, perPage, (page - 1) * perPage
}

type listResponse struct {
	Data interface{} `json:"data"`
	Page models.Page `json:"page"`
}

func writePage(w http.ResponseWriter, data interface{}, page, perPage, total int) {
	writeJSON(w, http.StatusOK, listResponse{
		Data: data,
		Page: models.Page{Page: page, PerPage: perPage, Total: total},
	})
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "opsdesk",
	})
}
