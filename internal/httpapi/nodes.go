package httpapi

import (
	"net/http"
	"strings"
)

type nodeRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type idRequest struct {
	ID string `json:"id"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (s *server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.opt.Store.ListNodes(r.Context())
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, nodes)
}

func (s *server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	name, rawURL := strings.TrimSpace(req.Name), strings.TrimSpace(req.URL)
	if name == "" || rawURL == "" {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "name 和 url 不能为空", ""))
		return
	}
	n, err := s.opt.Store.CreateNode(r.Context(), name, rawURL)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, n)
}

func (s *server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	name, rawURL := strings.TrimSpace(req.Name), strings.TrimSpace(req.URL)
	if req.ID == "" || name == "" || rawURL == "" {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "id、name 和 url 不能为空", ""))
		return
	}
	n, err := s.opt.Store.UpdateNode(r.Context(), req.ID, name, rawURL)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, n)
}

func (s *server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if req.ID == "" {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "id 不能为空", ""))
		return
	}
	if err := s.opt.Store.DeleteNode(r.Context(), req.ID); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, successResponse{Success: true})
}
