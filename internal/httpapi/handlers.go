package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/quizparty/party-backend/internal/registry"
)

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}{Status: "OK", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// ListParties is a read-only snapshot of live parties: code, player count
// and lifecycle state.
func ListParties(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []registry.PartyInfo, 1)
		reg.Inbox() <- registry.List{Reply: reply}
		parties := <-reply

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(parties)
	}
}

// PartyQR serves a PNG QR code encoding the join link for a live party.
func PartyQR(reg *registry.Registry, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))

		reply := make(chan bool, 1)
		reg.Inbox() <- registry.HasParty{Code: code, Reply: reply}
		if !<-reply {
			http.Error(w, "party not found", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(publicURL+"/?code="+code, qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to generate qr code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
