package httpapi

import (
	"encoding/json"
	"net/http"

	goOTC "github.com/MrEthical07/goOTC"
)

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Data: data})
}

func writeFail(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorEnvelope{Message: message, Code: code})
}

// writeError maps an Engine error onto the error envelope. Wrapped backend
// detail never reaches the client.
func writeError(w http.ResponseWriter, err error) {
	writeFail(w, goOTC.HTTPStatus(err), goOTC.MessageOf(err), string(goOTC.KindOf(err)))
}
