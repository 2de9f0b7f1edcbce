package httpapi

import "net/http"

func NewMux() http.Handler {
	return NewMuxWithOptions(Options{})
}

func NewMuxWithOptions(opt Options) http.Handler {
	opt = opt.withDefaults()
	s := &server{opt: opt}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /metrics", handleMetrics)
	mux.HandleFunc("GET /favicon.ico", handleFavicon)

	mux.HandleFunc("GET /admin", s.requireAdmin(s.handleAdminPage))

	mux.HandleFunc("GET /api/nodes", s.requireAdmin(s.handleListNodes))
	mux.HandleFunc("POST /api/nodes", s.requireAdmin(s.handleCreateNode))
	mux.HandleFunc("PUT /api/nodes", s.requireAdmin(s.handleUpdateNode))
	mux.HandleFunc("DELETE /api/nodes", s.requireAdmin(s.handleDeleteNode))

	mux.HandleFunc("GET /api/collections", s.handleListCollections)
	mux.HandleFunc("POST /api/collections", s.requireAdmin(s.handleCreateCollection))
	mux.HandleFunc("PUT /api/collections", s.requireAdmin(s.handleUpdateCollection))
	mux.HandleFunc("DELETE /api/collections", s.requireAdmin(s.handleDeleteCollection))
	mux.HandleFunc("POST /api/collections/verify", s.handleVerify)
	mux.HandleFunc("GET /api/collections/token/{id}", s.handleToken)

	mux.HandleFunc("GET /api/share/{id}", s.handleShare)
	mux.HandleFunc("GET /api/share/{id}/{kind}", s.handleShareKind)

	mux.HandleFunc("GET /user", handleUserLogin)
	mux.HandleFunc("GET /user/{id}", s.handleUserPage)

	return withPreflight(mux)
}

// server carries the wired collaborators for the route handlers.
type server struct {
	opt Options
}
