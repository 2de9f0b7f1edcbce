// Package subscription renders a collection into client subscriptions:
// a base64 link list, a sing-box JSON config or a Clash YAML config.
package subscription

import (
	"fmt"

	"github.com/John-Robertt/subhub-go/internal/model"
)

type Target string

const (
	TargetBase    Target = "base"
	TargetSingBox Target = "singbox"
	TargetClash   Target = "clash"
)

var Targets = []Target{TargetBase, TargetSingBox, TargetClash}

func ParseTarget(s string) (Target, bool) {
	for _, t := range Targets {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Ext is the file extension used for downloads of t.
func (t Target) Ext() string {
	switch t {
	case TargetSingBox:
		return ".json"
	case TargetClash:
		return ".yaml"
	default:
		return ".txt"
	}
}

// ContentType of the rendered body.
func (t Target) ContentType() string {
	switch t {
	case TargetSingBox:
		return "application/json; charset=utf-8"
	case TargetClash:
		return "text/yaml; charset=utf-8"
	default:
		return "text/plain;charset=utf-8"
	}
}

type BuildError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *BuildError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *BuildError) Unwrap() error { return e.Cause }

func buildError(status int, code, message, stage string, cause error) *BuildError {
	return &BuildError{
		Status: status,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   stage,
		},
		Cause: cause,
	}
}
