package controller

import (
	"encoding/json"
	"net/http"

	"khabiteq-backend/model"
)

func writeJSON(w http.ResponseWriter, status int, env model.Envelope[any]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeOK(w http.ResponseWriter, data any, message string) {
	env := model.Envelope[any]{Success: true, Message: message}
	if data != nil {
		env.Data = &data
	}
	writeJSON(w, http.StatusOK, env)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.Envelope[any]{Success: false, Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
