package httpapi

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/John-Robertt/subhub-go/internal/subscription"
)

// Pages are embedded so the binary stays self-contained.
//
//go:embed ui/*.html
var uiFS embed.FS

var (
	uiHome  = mustReadUI("ui/home.html")
	uiLogin = mustReadUI("ui/login.html")

	uiTemplates = template.Must(template.ParseFS(uiFS, "ui/admin.html", "ui/user.html"))
)

func mustReadUI(name string) []byte {
	b, err := uiFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return b
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func renderPage(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := uiTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

func handleHome(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, uiHome)
}

func handleUserLogin(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, uiLogin)
}

type adminPage struct {
	SubWorkerURL  string
	SubscriberURL string
	QuickSubURL   string
}

func (s *server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "admin.html", adminPage{
		SubWorkerURL:  s.opt.Converter.BaseURL,
		SubscriberURL: s.opt.SubscriberURL,
		QuickSubURL:   s.opt.QuickSubURL,
	})
}

type subscriptionLink struct {
	Target subscription.Target
	URL    string
}

type userPage struct {
	Name      string
	NodeCount int
	ShareURL  string
	Links     []subscriptionLink
}

// subscriptionLinks lists the client URLs for a collection. They point at the
// external converter when one is configured, at this service otherwise.
func (s *server) subscriptionLinks(r *http.Request, collectionID string) []subscriptionLink {
	share := s.shareURL(r, collectionID)
	links := make([]subscriptionLink, 0, len(subscription.Targets))
	for _, t := range subscription.Targets {
		u := share + "/" + string(t) + "?internal=1"
		if s.opt.Converter.Enabled() {
			u = s.opt.Converter.URL(t, share, "")
		}
		links = append(links, subscriptionLink{Target: t, URL: u})
	}
	return links
}
