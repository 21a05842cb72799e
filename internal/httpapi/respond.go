package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DoyleJ11/scrim-review/internal/ddragon"
	"github.com/DoyleJ11/scrim-review/internal/grid"
	"github.com/DoyleJ11/scrim-review/internal/scrims"
	"github.com/DoyleJ11/scrim-review/internal/store"
)

const maxBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var se *grid.StatusError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, scrims.ErrUpstream),
		errors.Is(err, grid.ErrMaxRetries),
		errors.Is(err, grid.ErrGraphQL),
		errors.Is(err, grid.ErrTeamNotFound),
		errors.Is(err, ddragon.ErrFetch),
		errors.Is(err, ddragon.ErrNoVersions),
		errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
