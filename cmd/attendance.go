package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Mark and report attendance",
}

var attendanceMarkCmd = &cobra.Command{
	Use:   "mark <student-id>",
	Short: "Mark a student present by hand",
	Long: `Mark a student present in a session without face recognition.
Useful when a student cannot be identified at the kiosk. Marking is
idempotent: repeating it for the same student and session is harmless.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendanceMark,
}

var attendanceReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show attendance records",
	Long: `Show attendance records for a session, a day, or the whole history.

Examples:
  # One session's records, in arrival order
  face-attendance attendance report --session 7

  # All records for a day
  face-attendance attendance report --date 2024-09-01

  # Export to CSV
  face-attendance attendance report --session 7 --csv report.csv`,
	RunE: runAttendanceReport,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceMarkCmd)
	attendanceCmd.AddCommand(attendanceReportCmd)

	attendanceMarkCmd.Flags().Int64("session", 0, "Session to mark in (required)")
	_ = attendanceMarkCmd.MarkFlagRequired("session")

	attendanceReportCmd.Flags().Int64("session", 0, "Limit to one session")
	attendanceReportCmd.Flags().String("date", "", "Limit to one day (YYYY-MM-DD)")
	attendanceReportCmd.Flags().String("csv", "", "Write the report to a CSV file")
}

func runAttendanceMark(cmd *cobra.Command, args []string) error {
	sessionID := mustGetInt64(cmd, "session")

	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	ok, err := l.MarkAttendance(context.Background(), sessionID, args[0], "present")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %d is not active", sessionID)
	}

	fmt.Printf("Marked %s present in session %d\n", args[0], sessionID)
	return nil
}

// writeCSV exports records with a header row.
func writeCSV(path string, records []ledger.Record) error {
	f, err := os.Create(path) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"session_id", "student_id", "time", "status"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{fmt.Sprintf("%d", r.SessionID), r.StudentID, r.Time, r.Status}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func runAttendanceReport(cmd *cobra.Command, args []string) error {
	sessionID := mustGetInt64(cmd, "session")
	date := mustGetString(cmd, "date")
	csvPath := mustGetString(cmd, "csv")

	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := context.Background()
	var records []ledger.Record
	switch {
	case sessionID != 0:
		records, err = l.AttendanceBySession(ctx, sessionID)
	case date != "":
		records, err = l.AttendanceByDate(ctx, date)
	default:
		records, err = l.AllAttendance(ctx)
	}
	if err != nil {
		return err
	}

	if csvPath != "" {
		if err := writeCSV(csvPath, records); err != nil {
			return err
		}
		fmt.Printf("Wrote %d records to %s\n", len(records), csvPath)
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No attendance records")
		return nil
	}

	fmt.Printf("%-10s %-12s %-20s %s\n", "SESSION", "STUDENT", "TIME", "STATUS")
	for _, r := range records {
		fmt.Printf("%-10d %-12s %-20s %s\n", r.SessionID, r.StudentID, r.Time, r.Status)
	}
	fmt.Printf("\n%d records\n", len(records))
	return nil
}
