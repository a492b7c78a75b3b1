package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage class sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <course>",
	Short: "Open a new class session",
	Long: `Open a new class session for a course.
Times use the local timezone in the form 2006-01-02T15:04:05. A session
without an end time stays active until it is closed.

Examples:
  # Start a session now
  face-attendance session create Math101

  # Schedule a session window
  face-attendance session create Math101 --start 2024-09-01T09:00:00 --end 2024-09-01T10:30:00`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionCreate,
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close <session-id>",
	Short: "Close a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionClose,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions, unfinished first",
	RunE:  runSessionList,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionCloseCmd)
	sessionCmd.AddCommand(sessionListCmd)

	sessionCreateCmd.Flags().String("start", "", "Session start time (defaults to now)")
	sessionCreateCmd.Flags().String("end", "", "Session end time (defaults to open-ended)")
	sessionListCmd.Flags().Int("limit", 20, "Maximum number of sessions to show")
}

func openLedger() (*ledger.Ledger, error) {
	cfg := config.Load()
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("opening attendance ledger: %w", err)
	}
	return l, nil
}

func parseTimeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	value := mustGetString(cmd, name)
	if value == "" {
		return time.Time{}, nil
	}
	ts, err := time.ParseInLocation(ledger.TimeLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return ts, nil
}

func parseSessionArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session id %q", arg)
	}
	return id, nil
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	start, err := parseTimeFlag(cmd, "start")
	if err != nil {
		return err
	}
	end, err := parseTimeFlag(cmd, "end")
	if err != nil {
		return err
	}

	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := context.Background()
	id, err := l.CreateSession(ctx, args[0], start, end)
	if err != nil {
		return err
	}

	session, err := l.GetSession(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Session %d opened for %s (starts %s)\n", session.ID, session.Course, session.StartTime)
	return nil
}

func runSessionClose(cmd *cobra.Command, args []string) error {
	id, err := parseSessionArg(args[0])
	if err != nil {
		return err
	}

	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	ok, err := l.CloseSession(context.Background(), id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %d not found", id)
	}

	fmt.Printf("Session %d closed\n", id)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	sessions, err := l.RecentSessions(context.Background(), mustGetInt(cmd, "limit"))
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions")
		return nil
	}

	fmt.Printf("%-6s %-20s %-20s %-20s %s\n", "ID", "COURSE", "START", "END", "STATUS")
	for _, s := range sessions {
		end := s.EndTime
		if end == "" {
			end = "-"
		}
		fmt.Printf("%-6d %-20s %-20s %-20s %s\n", s.ID, s.Course, s.StartTime, end, s.Status)
	}
	return nil
}
