package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"restaurant-system/internal/domain"
)

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem writes the error body {type, title, status, detail}; type is
// the machine-stable reason code.
func WriteProblem(w http.ResponseWriter, code int, typ, detail string) {
	WriteJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

// WriteError maps a domain error to its status and reason code. Internal
// errors do not leak their text.
func WriteError(w http.ResponseWriter, err error) {
	code := domain.HTTPStatus(err)
	detail := err.Error()
	if code == http.StatusInternalServerError {
		detail = "internal error"
	}
	WriteProblem(w, code, domain.Kind(err), detail)
}

// DecodeJSON reads a JSON body of at most 1 MiB.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func AtoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

// TenantID reads the tenant from the path, then X-Tenant-Id, then ?tenantId.
func TenantID(r *http.Request) string {
	if t := strings.TrimSpace(r.PathValue("tenantId")); t != "" {
		return t
	}
	if t := strings.TrimSpace(r.Header.Get("X-Tenant-Id")); t != "" {
		return t
	}
	return strings.TrimSpace(r.URL.Query().Get("tenantId"))
}
