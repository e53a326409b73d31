package apierrors

import (
	"net/http"
	"strings"
	"sync"
)

// ErrorCode is a registered API error code.
type ErrorCode struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status"`
}

// Namespace returns the part of the code before the colon, or "core".
func (e ErrorCode) Namespace() string {
	if ns, _, ok := strings.Cut(e.Code, ":"); ok && ns != "" {
		return ns
	}
	return "core"
}

// ErrorEnumerator is implemented by domain packages that declare their own codes.
type ErrorEnumerator interface {
	EnumerateErrors() []ErrorCode
}

// CodeRegistry maps codes to their status and default message. Registration
// order is kept per namespace so listings are stable.
type CodeRegistry struct {
	mu    sync.RWMutex
	codes map[string]ErrorCode
	order map[string][]string
}

// Registry is the process-wide error code registry.
var Registry = NewCodeRegistry()

func NewCodeRegistry() *CodeRegistry {
	return &CodeRegistry{codes: make(map[string]ErrorCode), order: make(map[string][]string)}
}

// Register adds or replaces codes.
func (r *CodeRegistry) Register(codes ...ErrorCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range codes {
		if _, exists := r.codes[e.Code]; !exists {
			ns := e.Namespace()
			r.order[ns] = append(r.order[ns], e.Code)
		}
		r.codes[e.Code] = e
	}
}

// RegisterNamespace registers every code of an enumerator, prefixing bare
// codes with ns.
func (r *CodeRegistry) RegisterNamespace(ns string, enumerator ErrorEnumerator) {
	codes := enumerator.EnumerateErrors()
	for i := range codes {
		if !strings.Contains(codes[i].Code, ":") {
			codes[i].Code = ns + ":" + codes[i].Code
		}
	}
	r.Register(codes...)
}

func (r *CodeRegistry) Get(code string) (ErrorCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.codes[code]
	return e, ok
}

// ByNamespace returns the codes registered under ns in registration order.
func (r *CodeRegistry) ByNamespace(ns string) []ErrorCode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ErrorCode, 0, len(r.order[ns]))
	for _, code := range r.order[ns] {
		out = append(out, r.codes[code])
	}
	return out
}

// HTTPStatus returns the status for a code, or 500 if unknown.
func (r *CodeRegistry) HTTPStatus(code string) int {
	if e, ok := r.Get(code); ok {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Message returns the default message for a code, or the code itself if unknown.
func (r *CodeRegistry) Message(code string) string {
	if e, ok := r.Get(code); ok {
		return e.Message
	}
	return code
}
