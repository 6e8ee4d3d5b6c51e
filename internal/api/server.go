// Package api exposes the three HTTP surfaces: the identity issuer, the
// protected resource API and the local session service. The surfaces are
// thin shells; all interesting decisions live in the inner packages.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/perimetra/perimetra/internal/api/presenter"
	"github.com/perimetra/perimetra/internal/buildinfo"
)

// DecodePayload strictly decodes a JSON request body into dest.
func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	switch r.Header.Get("Content-Type") {
	case "application/json", "":
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			if !errors.Is(err, io.EOF) || !allowEmpty {
				return err
			}
		}
		if dec.More() {
			return errors.New("extra data in request body")
		}
		return nil
	default:
		return errors.New("unsupported content type")
	}
}

// handleHealth responds with a simple OK status.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service version information.
func handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}
