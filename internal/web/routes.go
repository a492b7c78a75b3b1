package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	enrollHandler := handlers.NewEnrollHandler(s.deps.Config, s.deps.Detector, s.deps.Store, s.deps.Matcher)
	studentsHandler := handlers.NewStudentsHandler(s.deps.Store, s.deps.Matcher)
	sessionsHandler := handlers.NewSessionsHandler(s.deps.Ledger)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Recognizer, s.deps.Ledger)
	matchHandler := handlers.NewMatchHandler(s.deps.Detector, s.deps.Matcher, s.deps.Config.Matching.Threshold)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Enrollment sessions
		r.Post("/enroll", enrollHandler.Start)
		r.Get("/enroll/{id}", enrollHandler.Status)
		r.Post("/enroll/{id}/samples", enrollHandler.AddSample)
		r.Post("/enroll/{id}/save", enrollHandler.Save)
		r.Delete("/enroll/{id}", enrollHandler.Cancel)

		// Roster
		r.Get("/students", studentsHandler.List)
		r.Get("/students/search", studentsHandler.Search)
		r.Get("/students/{id}", studentsHandler.Get)
		r.Delete("/students/{id}", studentsHandler.Delete)

		// Identification without marking
		r.Post("/match", matchHandler.Match)

		// Class sessions
		r.Post("/sessions", sessionsHandler.Create)
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/active", sessionsHandler.Active)
		r.Get("/sessions/{id}", sessionsHandler.Get)
		r.Post("/sessions/{id}/close", sessionsHandler.Close)

		// Attendance
		r.Post("/sessions/{id}/recognize", attendanceHandler.Recognize)
		r.Get("/sessions/{id}/attendance", attendanceHandler.BySession)
		r.Get("/attendance", attendanceHandler.List)
	})
}
