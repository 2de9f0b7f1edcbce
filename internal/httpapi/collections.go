package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/John-Robertt/subhub-go/internal/auth"
	"github.com/John-Robertt/subhub-go/internal/model"
	"github.com/John-Robertt/subhub-go/internal/store"
)

type createCollectionRequest struct {
	Name    string   `json:"name"`
	NodeIDs []string `json:"nodeIds"`
	UserID  string   `json:"userId"`
}

type updateCollectionRequest struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	NodeIDs []string `json:"nodeIds"`
	// Username and Password set the user-page credentials when Password is
	// not empty.
	Username string `json:"username"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Success      bool   `json:"success"`
	CollectionID string `json:"collectionId"`
	SessionToken string `json:"sessionToken"`
}

// tokenInfo is the public view of a collection's credentials.
type tokenInfo struct {
	Username     string     `json:"username,omitempty"`
	CollectionID string     `json:"collectionId,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

func (s *server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	cs, err := s.opt.Store.ListCollections(r.Context())
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	WriteJSON(w, http.StatusOK, cs)
}

func (s *server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || req.NodeIDs == nil {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "name 和 nodeIds 不能为空", ""))
		return
	}
	c, err := s.opt.Store.CreateCollection(r.Context(), name, req.NodeIDs, req.UserID)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

func (s *server) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	var req updateCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if req.ID == "" {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "id 不能为空", ""))
		return
	}
	c, err := s.opt.Store.UpdateCollection(r.Context(), store.CollectionUpdate{
		ID:      req.ID,
		Name:    strings.TrimSpace(req.Name),
		NodeIDs: req.NodeIDs,
	})
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if req.Password != "" {
		if _, err := s.opt.Auth.SetCredentials(r.Context(), c.ID, strings.TrimSpace(req.Username), req.Password); err != nil {
			writeErrorFromErr(w, err)
			return
		}
	}
	WriteJSON(w, http.StatusOK, c)
}

func (s *server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if req.ID == "" {
		writeErrorFromErr(w, requestError("INVALID_ARGUMENT", "id 不能为空", ""))
		return
	}
	if err := s.opt.Store.DeleteCollection(r.Context(), req.ID); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleVerify exchanges collection credentials for a session.
func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !s.opt.Throttle.Allow(clientIP(r)) {
		WriteError(w, http.StatusTooManyRequests, model.AppError{
			Code:    "TOO_MANY_REQUESTS",
			Message: "登录尝试过于频繁，请稍后再试",
			Stage:   "auth",
		})
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	sess, err := s.opt.Auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		WriteError(w, http.StatusUnauthorized, model.AppError{
			Code:    "UNAUTHORIZED",
			Message: "用户名或密码错误",
			Stage:   "auth",
		})
		return
	}
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	http.SetCookie(w, s.opt.Auth.SessionCookie(sess))
	WriteJSON(w, http.StatusOK, verifyResponse{
		Success:      true,
		CollectionID: sess.CollectionID,
		SessionToken: sess.Token,
	})
}

func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	t, ok, err := s.opt.Store.UserToken(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	var info tokenInfo
	if ok {
		created := t.CreatedAt
		info = tokenInfo{Username: t.Username, CollectionID: t.CollectionID, CreatedAt: &created}
	}
	WriteJSON(w, http.StatusOK, info)
}
