package oracle

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// Handler exposes the oracle service over HTTP: a coordinator (or a test
// harness standing in for one) POSTs a decryption request and receives
// the signed callback payload.
type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/oracle/key", h.handleKey)
	r.Post("/oracle/fulfill", h.handleFulfill)
}

// handleKey returns the oracle's verification key.
func (h *Handler) handleKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"public_key": h.Service.PublicKey().String(),
	})
}

// handleFulfill resolves and signs a decryption request.
func (h *Handler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req, err := protocol.DecodeMessage[protocol.DecryptionRequest](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	values, sigs, err := h.Service.Fulfill(*req)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fulfill request: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.DecryptionCallback{
		Batch: protocol.PlaintextBatch{
			RequestID: req.RequestID,
			Values:    values,
		},
		Signatures: sigs,
	})
}
