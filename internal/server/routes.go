// Package server wires HTTP handlers into a ServeMux for the chat relay.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the WebSocket endpoint, the health check, and the static
// presentation assets served from the configured public directory.
func SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", WebSocketHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.Handle("/", http.FileServer(http.Dir(currentConfig().PublicDir)))
	return mux
}
