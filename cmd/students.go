package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/templatestore"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage enrolled students",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all enrolled students",
	RunE:  runStudentsList,
}

var studentsShowCmd = &cobra.Command{
	Use:   "show <student-id>",
	Short: "Show one enrolled student",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentsShow,
}

var studentsDeleteCmd = &cobra.Command{
	Use:   "delete <student-id>",
	Short: "Remove a student's template",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentsDelete,
}

var studentsSearchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Search students by name (case and diacritics insensitive)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentsSearch,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd)
	studentsCmd.AddCommand(studentsShowCmd)
	studentsCmd.AddCommand(studentsDeleteCmd)
	studentsCmd.AddCommand(studentsSearchCmd)
}

func printStudents(templates []templatestore.Template) {
	fmt.Printf("%-12s %-30s %8s %8s  %s\n", "ID", "NAME", "SAMPLES", "QUALITY", "ENROLLED")
	for _, t := range templates {
		fmt.Printf("%-12s %-30s %8d %8.2f  %s\n",
			t.ID, t.Name, t.NumSamples, t.QualityScore, t.CreatedDate)
	}
}

func runStudentsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx, config.Load())
	if err != nil {
		return err
	}

	templates := store.Templates()
	if len(templates) == 0 {
		fmt.Println("No students enrolled")
		return nil
	}

	printStudents(templates)
	fmt.Printf("\n%d students enrolled\n", len(templates))
	return nil
}

func runStudentsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx, config.Load())
	if err != nil {
		return err
	}

	t := store.Get(args[0])
	if t == nil {
		return fmt.Errorf("student %s is not enrolled", args[0])
	}

	fmt.Printf("ID:       %s\n", t.ID)
	fmt.Printf("Name:     %s\n", t.Name)
	fmt.Printf("Samples:  %d\n", t.NumSamples)
	fmt.Printf("Quality:  %.2f\n", t.QualityScore)
	if t.Model != "" {
		fmt.Printf("Model:    %s\n", t.Model)
	}
	fmt.Printf("Enrolled: %s\n", t.CreatedDate)
	return nil
}

func runStudentsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx, config.Load())
	if err != nil {
		return err
	}

	found, err := store.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("student %s is not enrolled", args[0])
	}

	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runStudentsSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx, config.Load())
	if err != nil {
		return err
	}

	matches := store.FindByName(args[0])
	if len(matches) == 0 {
		fmt.Printf("No students named %q\n", args[0])
		return nil
	}

	printStudents(matches)
	return nil
}
