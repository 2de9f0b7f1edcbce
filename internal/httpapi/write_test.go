package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/subhub-go/internal/model"
)

func TestWriteError_JSONShapeAndHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusBadGateway, model.AppError{
		Code:    "FETCH_FAILED",
		Message: "拉取模板失败",
		Stage:   "fetch_template",
		URL:     "https://example.com/base.yaml",
		Hint:    "upstream status=503",
	})

	if got, want := rr.Code, http.StatusBadGateway; got != want {
		t.Fatalf("status = %d, want %d", got, want)
	}

	if got, want := rr.Header().Get("Content-Type"), "application/json; charset=utf-8"; got != want {
		t.Fatalf("Content-Type = %q, want %q", got, want)
	}

	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	if resp.Error.Code != "FETCH_FAILED" {
		t.Fatalf("code = %q, want %q", resp.Error.Code, "FETCH_FAILED")
	}
	if resp.Error.Stage != "fetch_template" {
		t.Fatalf("stage = %q, want %q", resp.Error.Stage, "fetch_template")
	}
	if resp.Error.URL != "https://example.com/base.yaml" {
		t.Fatalf("url = %q", resp.Error.URL)
	}
}

func TestWriteAggregateError_PlainText(t *testing.T) {
	rr := httptest.NewRecorder()
	writeAggregateError(rr, http.StatusInternalServerError, "NO_VALID_NODES", "No valid nodes found")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if got, want := rr.Body.String(), "Error: No valid nodes found"; got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
	if got, want := rr.Header().Get("Content-Type"), "text/plain;charset=utf-8"; got != want {
		t.Fatalf("Content-Type = %q, want %q", got, want)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestWriteErrorFromErr_Fallback(t *testing.T) {
	rr := httptest.NewRecorder()
	writeErrorFromErr(rr, errString("boom"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error.Code != "INTERNAL_ERROR" || resp.Error.Hint != "boom" {
		t.Fatalf("error = %+v", resp.Error)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
