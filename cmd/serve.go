package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/faceapi"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance server",
	Long: `Start the Face Attendance web server.
The server exposes the enrollment, identification and attendance API used
by the kiosk frontend.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Template store ready (%d students enrolled)\n", store.Count())

	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("opening attendance ledger: %w", err)
	}
	defer l.Close()

	detector := newDetector(cfg)
	matcher := recognition.NewMatcher(store)

	var liveness *faceapi.LivenessClient
	if cfg.Liveness.URL != "" {
		liveness = faceapi.NewLivenessClient(cfg.Liveness.URL)
		fmt.Printf("Liveness gate enabled (%s)\n", cfg.Liveness.URL)
	}

	recognizer := attendance.NewRecognizer(detector, liveness, matcher, l, attendance.Config{
		MatchThreshold:        cfg.Matching.Threshold,
		LivenessMinConfidence: cfg.LiveCheck.MinConfidence,
		MarkCooldown:          time.Duration(cfg.Attendance.MarkCooldownSeconds) * time.Second,
	})

	host, port := resolveServeHostPort(cmd)
	server := web.NewServer(web.Deps{
		Config:     cfg,
		Store:      store,
		Matcher:    matcher,
		Ledger:     l,
		Detector:   detector,
		Recognizer: recognizer,
	}, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance server on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
