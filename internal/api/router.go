package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check and login require no auth
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket authenticates with a single-use ticket rather than a
		// bearer header, which browsers cannot attach to an upgrade.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/system/info", s.handleSystemInfo)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Profile store
			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", s.handleListProfiles)
				r.Post("/", s.handleCreateProfile)

				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.handleGetProfile)
					r.Put("/", s.handleUpdateProfile)
					r.Delete("/", s.handleDeleteProfile)
					r.Get("/drivers", s.handleProfileDrivers)
					r.Post("/drivers", s.handleAddProfileDriver)
				})
			})

			// Driver catalog
			r.Route("/drivers", func(r chi.Router) {
				r.Get("/", s.handleListDrivers)
				r.Get("/families", s.handleDriverFamilies)
				r.Post("/custom", s.handleAddCustomDriver)
				r.Delete("/custom/{label}", s.handleDeleteCustomDriver)
			})

			// Server supervisor
			r.Route("/server", func(r chi.Router) {
				r.Get("/status", s.handleServerStatus)
				r.Get("/log", s.handleServerLog)
				r.Post("/start/{profile}", s.handleServerStart)
				r.Post("/stop", s.handleServerStop)

				r.Route("/drivers", func(r chi.Router) {
					r.Get("/", s.handleRunningDrivers)
					r.Post("/{label}/start", s.handleDriverStart)
					r.Post("/{label}/stop", s.handleDriverStop)
					r.Post("/{label}/restart", s.handleDriverRestart)
				})
			})

			// Property sync bridge
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{device}", func(r chi.Router) {
					r.Get("/structure", s.handleDeviceStructure)
					r.Get("/dirty", s.handleDeviceDirty)
					r.Post("/batch", s.handleDeviceBatch)
					r.Get("/messages", s.handleDeviceMessages)
					r.Put("/properties/{property}", s.handleSetProperty)
				})
			})
		})
	})

	return r
}
