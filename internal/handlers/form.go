package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed static/index.html
var indexHTML []byte

// FormHandler serves the upload form
func FormHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}
