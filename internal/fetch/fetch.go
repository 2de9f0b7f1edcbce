package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/subhub-go/internal/model"
)

// DefaultUserAgent is sent when Options.UserAgent is empty. Several
// subscription providers refuse requests without a browser-like agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type Kind int

const (
	KindSubscription Kind = iota
	KindTemplate
	KindConverter
)

func (k Kind) stage() string {
	switch k {
	case KindSubscription:
		return "fetch_sub"
	case KindTemplate:
		return "fetch_template"
	case KindConverter:
		return "fetch_converter"
	default:
		return "fetch"
	}
}

func (k Kind) defaultMaxBytes() int64 {
	switch k {
	case KindSubscription, KindConverter:
		return 5 * 1024 * 1024
	case KindTemplate:
		return 2 * 1024 * 1024
	default:
		return 1 * 1024 * 1024
	}
}

type Options struct {
	Timeout      time.Duration // default 15s
	MaxBytes     int64         // default per kind
	MaxRedirects int           // default 5
	UserAgent    string        // default DefaultUserAgent
}

func (o Options) withDefaults(kind Kind) Options {
	if o.Timeout == 0 {
		o.Timeout = 15 * time.Second
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = 5
	}
	if o.MaxBytes == 0 {
		o.MaxBytes = kind.defaultMaxBytes()
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Response is an upstream reply with its body already read and capped.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type FetchError struct {
	// Status is the HTTP status this error maps to at our edge.
	Status int
	// UpstreamStatus is the non-2xx status returned by the remote, or 0.
	UpstreamStatus int
	AppError       model.AppError
	Cause          error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// NotFound reports whether the upstream answered 404.
func (e *FetchError) NotFound() bool {
	return e != nil && e.UpstreamStatus == http.StatusNotFound
}

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

func newError(status int, code, message string, kind Kind, rawURL string, cause error) *FetchError {
	return &FetchError{
		Status: status,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   kind.stage(),
			URL:     rawURL,
		},
		Cause: cause,
	}
}

func timeoutError(kind Kind, rawURL string, cause error) *FetchError {
	return newError(http.StatusGatewayTimeout, "FETCH_TIMEOUT", "拉取远程资源超时", kind, rawURL, cause)
}

// Get performs a GET against rawURL and returns the reply whatever its
// status. Only transport failures, policy violations and oversized bodies
// are errors.
func Get(ctx context.Context, kind Kind, rawURL string, opt Options) (*Response, error) {
	opt = opt.withDefaults(kind)
	if opt.MaxBytes <= 0 {
		return nil, newError(http.StatusBadRequest, "INVALID_ARGUMENT", "响应大小上限必须大于 0", kind, rawURL, nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, newError(http.StatusBadRequest, "INVALID_ARGUMENT", "仅允许 http/https URL", kind, rawURL,
			errors.Join(errInvalidURLOrScheme, err))
	}

	client := &http.Client{
		Timeout:   opt.Timeout,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// 1st redirect => len(via)==1.
			if len(via) > opt.MaxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(http.StatusBadRequest, "INVALID_ARGUMENT", "请求 URL 不合法", kind, rawURL, err)
	}
	req.Header.Set("User-Agent", opt.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		switch {
		case errors.Is(err, errTooManyRedirects):
			return nil, newError(http.StatusBadGateway, "FETCH_FAILED",
				fmt.Sprintf("重定向次数超过上限（>%d）", opt.MaxRedirects), kind, rawURL, err)
		case errors.Is(err, errRedirectBadScheme):
			return nil, newError(http.StatusBadRequest, "INVALID_ARGUMENT", "重定向目标仅允许 http/https", kind, rawURL, err)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, timeoutError(kind, rawURL, err)
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, timeoutError(kind, rawURL, err)
		}
		return nil, newError(http.StatusBadGateway, "FETCH_FAILED", "拉取远程资源失败", kind, rawURL, err)
	}
	defer resp.Body.Close()

	// Read at most MaxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, opt.MaxBytes+1))
	if err != nil {
		var ne net.Error
		if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError(kind, rawURL, err)
		}
		return nil, newError(http.StatusBadGateway, "FETCH_FAILED", "读取上游响应失败", kind, rawURL, err)
	}
	if int64(len(body)) > opt.MaxBytes {
		return nil, newError(http.StatusUnprocessableEntity, "TOO_LARGE",
			fmt.Sprintf("远程资源过大（>%d bytes）", opt.MaxBytes), kind, rawURL, nil)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// FetchBytes is Get restricted to 2xx replies. A non-2xx reply becomes a
// FetchError whose UpstreamStatus carries the remote status.
func FetchBytes(ctx context.Context, kind Kind, rawURL string, opt Options) ([]byte, error) {
	resp, err := Get(ctx, kind, rawURL, opt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fe := newError(http.StatusBadGateway, "FETCH_FAILED",
			fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode), kind, rawURL, nil)
		fe.UpstreamStatus = resp.StatusCode
		return nil, fe
	}
	return resp.Body, nil
}

func FetchText(ctx context.Context, kind Kind, rawURL string) (string, error) {
	return FetchTextWithOptions(ctx, kind, rawURL, Options{})
}

// FetchTextWithOptions is FetchBytes plus a UTF-8 validity check.
func FetchTextWithOptions(ctx context.Context, kind Kind, rawURL string, opt Options) (string, error) {
	body, err := FetchBytes(ctx, kind, rawURL, opt)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(body) {
		return "", newError(http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8", "远程资源不是合法 UTF-8 文本", kind, rawURL, nil)
	}
	return string(body), nil
}
