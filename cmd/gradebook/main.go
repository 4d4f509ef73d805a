// Command gradebook parses ministry gradebook exports and rewrites grade
// cells in place, without the API or a database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/aspirant2018/niqatech-backend/internal/excel"
	"github.com/aspirant2018/niqatech-backend/internal/lock"
	"github.com/aspirant2018/niqatech-backend/internal/logger"
	"github.com/aspirant2018/niqatech-backend/internal/model"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	logLevel        string
	pretty          bool
	sheet           string
	row             int
	evaluation      string
	firstAssignment string
	finalExam       string
	observation     string
)

type skippedSheet struct {
	Index     int    `json:"index"`
	SheetName string `json:"sheet_name"`
	Reason    string `json:"reason"`
}

type parseOutput struct {
	Format         string                  `json:"format"`
	SheetCount     int                     `json:"num_sheets"`
	DataSheetCount int                     `json:"num_data_sheets"`
	Classrooms     []model.ClassroomRecord `json:"classrooms"`
	Skipped        []skippedSheet          `json:"skipped"`
	Warnings       []string                `json:"warnings,omitempty"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "gradebook",
		Short:         "Read and update ministry gradebook workbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	parseCmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Print the classrooms of a workbook as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}
	parseCmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")

	rewriteCmd := &cobra.Command{
		Use:   "rewrite [file]",
		Short: "Write grades of one student row back into the workbook",
		Long: `rewrite updates the grade and observation cells of one row in place.
Cells whose flag is not given keep their current value; an empty value
clears the cell.`,
		Args: cobra.ExactArgs(1),
		RunE: runRewrite,
	}
	rewriteCmd.Flags().StringVar(&sheet, "sheet", "", "Sheet name")
	rewriteCmd.Flags().IntVar(&row, "row", 0, "Zero-based row of the student")
	rewriteCmd.Flags().StringVar(&evaluation, "evaluation", "", "Evaluation grade")
	rewriteCmd.Flags().StringVar(&firstAssignment, "first-assignment", "", "First assignment grade")
	rewriteCmd.Flags().StringVar(&finalExam, "final-exam", "", "Final exam grade")
	rewriteCmd.Flags().StringVar(&observation, "observation", "", "Observation text")
	_ = rewriteCmd.MarkFlagRequired("sheet")
	_ = rewriteCmd.MarkFlagRequired("row")

	rootCmd.AddCommand(parseCmd, rewriteCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	return logger.New(logLevel, "console")
}

func parseFile(ctx context.Context, path string) (*excel.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return excel.NewParser(excel.DefaultTemplate(), newLogger()).Parse(ctx, data)
}

func runParse(cmd *cobra.Command, args []string) error {
	result, err := parseFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := parseOutput{
		Format:         string(result.Format),
		SheetCount:     result.SheetCount,
		DataSheetCount: result.DataSheetCount,
		Classrooms:     result.Classrooms,
		Skipped:        make([]skippedSheet, len(result.Skipped)),
		Warnings:       result.Warnings,
	}
	for i, s := range result.Skipped {
		out.Skipped[i] = skippedSheet{Index: s.Index, SheetName: s.SheetName, Reason: s.Reason.Error()}
	}

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runRewrite(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()

	update := excel.GradeUpdate{Row: row}
	if result, err := parseFile(ctx, path); err == nil {
		update = currentValues(result, sheet, row)
	}

	flags := cmd.Flags()
	for name, target := range map[string]**float64{
		"evaluation":       &update.Evaluation,
		"first-assignment": &update.FirstAssignment,
		"final-exam":       &update.FinalExam,
	} {
		if !flags.Changed(name) {
			continue
		}
		raw, _ := flags.GetString(name)
		v, err := gradeFlag(name, raw)
		if err != nil {
			return err
		}
		*target = v
	}
	if flags.Changed("observation") {
		update.Observation = observation
	}

	rewriter := excel.NewRewriter(excel.DefaultTemplate(), lock.NewKeyedMutex(), newLogger())
	if err := rewriter.RewriteGrades(ctx, path, sheet, []excel.GradeUpdate{update}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s!%d\n", sheet, row)
	return nil
}

// currentValues starts the update from what the row holds now so that
// flags left out do not clear cells.
func currentValues(result *excel.ParseResult, sheetName string, row int) excel.GradeUpdate {
	for _, c := range result.Classrooms {
		if c.SheetName != sheetName {
			continue
		}
		for _, s := range c.Students {
			if s.Row == row {
				return excel.GradeUpdate{
					Row:             row,
					Evaluation:      s.Evaluation,
					FirstAssignment: s.FirstAssignment,
					FinalExam:       s.FinalExam,
					Observation:     s.Observation,
				}
			}
		}
	}
	return excel.GradeUpdate{Row: row}
}

func gradeFlag(name, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 20 {
		return nil, fmt.Errorf("--%s must be a grade between 0 and 20, got %q", name, raw)
	}
	return &v, nil
}
