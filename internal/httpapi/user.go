package httpapi

import (
	"errors"
	"net/http"

	"github.com/John-Robertt/subhub-go/internal/store"
)

// handleUserPage shows one collection's subscription links. Collections
// with credentials need either a session cookie for that collection or
// matching Basic credentials.
func (s *server) handleUserPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	c, err := s.opt.Store.GetCollection(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		WriteText(w, http.StatusNotFound, "Collection not found")
		return
	}
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	protected, err := s.opt.Auth.Protected(ctx, id)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if protected {
		ok, err := s.userAuthorized(r, id)
		if err != nil {
			writeErrorFromErr(w, err)
			return
		}
		if !ok {
			msg := "Invalid credentials"
			if _, _, hasBasic := r.BasicAuth(); !hasBasic {
				msg = "Authentication required"
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="User Access"`)
			WriteText(w, http.StatusUnauthorized, msg)
			return
		}
	}

	nodes, err := s.opt.Store.CollectionNodes(ctx, c)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	renderPage(w, "user.html", userPage{
		Name:      c.Name,
		NodeCount: len(nodes),
		ShareURL:  s.shareURL(r, c.ID),
		Links:     s.subscriptionLinks(r, c.ID),
	})
}

func (s *server) userAuthorized(r *http.Request, collectionID string) (bool, error) {
	if ck, err := r.Cookie("session"); err == nil {
		sess, ok, err := s.opt.Auth.Session(r.Context(), ck.Value)
		if err != nil {
			return false, err
		}
		if ok && sess.CollectionID == collectionID {
			return true, nil
		}
	}
	return s.opt.Auth.CheckCollection(r.Context(), r, collectionID)
}
