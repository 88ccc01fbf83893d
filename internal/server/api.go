package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// The auth API is a mock: it validates nothing and keeps no accounts. It
// exists so the sign-in flow exercises a real HTTP round trip and so its
// failure modes (bad body, unreachable host) surface in the client forms.

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type canvasUpdateRequest struct {
	CanvasData json.RawMessage `json:"canvasData"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[api] write response: %v", err)
	}
}

func badBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"message": "Invalid request body",
	})
}

func loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badBody(w)
		return
	}
	log.Printf("[api] login attempt: %s", req.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   "dummy-token-" + randomSuffix(),
		"message": "Login successful (mock)",
	})
}

func signupHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badBody(w)
		return
	}
	log.Printf("[api] signup attempt: %s", req.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  "user-" + randomSuffix(),
		"message": "Signup successful (mock)",
	})
}

func updateCanvasHandler(w http.ResponseWriter, r *http.Request) {
	var req canvasUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badBody(w)
		return
	}
	if len(req.CanvasData) > 0 {
		log.Printf("[api] canvas update received: data present")
	} else {
		log.Printf("[api] canvas update received: no data")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"saved":   true,
		"message": "Canvas updated successfully (mock)",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func randomSuffix() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// NewRouter wires the mock auth API, the health check and the hub's
// websocket endpoint.
func NewRouter(hub *Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/login", loginHandler).Methods(http.MethodPost)
	r.HandleFunc("/signup", signupHandler).Methods(http.MethodPost)
	r.HandleFunc("/updateCanvas", updateCanvasHandler).Methods(http.MethodPost)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", hub.HandleWS)
	return r
}
