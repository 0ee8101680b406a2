package http

import (
	"net/http"

	"github.com/securemed/portal/pkg/httpx"
)

type dashboardResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// DashboardHandler backs the per-role landing endpoints. The access gate
// has already enforced the role by the time a request lands here.
func DashboardHandler(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, dashboardResponse{
			Message:  message,
			Username: httpx.Username(r.Context()),
			Role:     httpx.Role(r.Context()),
		})
	}
}
