package marketdata

import "net/http"

// Handler returns an http.Handler serving /ws/marketdata/{instrument} on
// a standalone net/http.Server. Kept separate from the fiber app (see
// routes.SetupRoutes) because gorilla/websocket requires a real
// net/http.Hijacker.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/marketdata/", func(w http.ResponseWriter, r *http.Request) {
		instrument := r.URL.Path[len("/ws/marketdata/"):]
		if instrument == "" {
			http.Error(w, "instrument required", http.StatusBadRequest)
			return
		}
		if err := h.ServeWS(w, r, instrument); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	})
	return mux
}
