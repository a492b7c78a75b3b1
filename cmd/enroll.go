package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <image-dir>",
	Short: "Enroll a student from a directory of face images",
	Long: `Enroll a student from captured face images.
Each image must contain exactly one face. Samples are gated on detection
confidence and on diversity against the previously accepted sample, then
aggregated into a single template.

Examples:
  # Enroll from a capture directory
  face-attendance enroll --id S123 --name "Jane Doe" ./captures/jane`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Student identifier (required)")
	enrollCmd.Flags().String("name", "", "Student display name (required)")
	_ = enrollCmd.MarkFlagRequired("id")
	_ = enrollCmd.MarkFlagRequired("name")
}

// listImages returns the image files in a directory in name order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	studentID := mustGetString(cmd, "id")
	name := mustGetString(cmd, "name")

	ctx := context.Background()
	cfg := config.Load()

	images, err := listImages(args[0])
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no images found in %s", args[0])
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	detector := newDetector(cfg)

	collector := recognition.NewCollector(
		cfg.Enrollment.MaxSamples,
		cfg.Enrollment.MinConfidence,
		cfg.Enrollment.MinSampleSimilarity,
	)
	aggregator := recognition.NewAggregator(store, recognition.AggregatorConfig{
		MaxOutlierDistance: cfg.Enrollment.MaxOutlierDistance,
		QualityReference:   cfg.Enrollment.QualityReference,
		Model:              "buffalo_l",
	})

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Collecting samples"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var rejected int
	for _, path := range images {
		_ = bar.Add(1)
		if collector.IsComplete() {
			break
		}

		data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		detections, err := detector.Detect(ctx, data)
		if err != nil {
			return fmt.Errorf("detecting faces in %s: %w", path, err)
		}

		candidates := make([]recognition.Candidate, len(detections))
		for i, d := range detections {
			candidates[i] = recognition.Candidate{Embedding: d.Embedding, DetScore: d.DetScore}
		}

		if _, err := collector.AddFrame(candidates); err != nil {
			rejected++
			fmt.Printf("\n  %s: %v\n", filepath.Base(path), err)
		}
	}
	fmt.Println()

	fmt.Printf("Accepted %d samples (%d rejected)\n", collector.Count(), rejected)
	template, err := aggregator.Finalize(ctx, collector, studentID, name)
	if err != nil {
		if errors.Is(err, recognition.ErrNoSamples) {
			return fmt.Errorf("no usable samples in %s", args[0])
		}
		return err
	}

	fmt.Printf("Enrolled %s (%s): %d samples, quality %.2f\n",
		template.Name, template.ID, template.NumSamples, template.QualityScore)
	return nil
}
