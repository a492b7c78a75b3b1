package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Identify faces in an image without marking attendance",
	Long: `Identify every face in an image against the enrolled templates.
Nothing is written; this is for verifying enrollments and tuning the
matching threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	data, err := os.ReadFile(args[0]) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	matcher := recognition.NewMatcher(store)
	if matcher.Count() == 0 {
		return fmt.Errorf("no students enrolled")
	}

	detections, err := newDetector(cfg).Detect(ctx, data)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}
	if len(detections) == 0 {
		fmt.Println("No faces detected")
		return nil
	}

	for i, d := range detections {
		if len(d.Embedding) == 0 {
			fmt.Printf("Face %d: no embedding extracted\n", i+1)
			continue
		}
		result := matcher.Match(d.Embedding, cfg.Matching.Threshold)
		if result.Matched {
			fmt.Printf("Face %d: %s (%s), similarity %.3f\n", i+1, result.Name, result.StudentID, result.Similarity)
		} else {
			fmt.Printf("Face %d: no match (best similarity %.3f)\n", i+1, result.Similarity)
		}
	}
	return nil
}
