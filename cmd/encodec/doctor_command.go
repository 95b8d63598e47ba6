package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"encodec-converter/internal/diagnostics"
	"encodec-converter/internal/domain"
)

var errDiagnosticsFailed = errors.New("one or more checks failed")

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, codec engines, device and the output folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			registry, err := ctx.codecRegistry()
			if err != nil {
				return err
			}

			report := diagnostics.NewChecker().Run(settings, registry)

			rows := make([][]string, 0, len(report.Items))
			for _, item := range report.Items {
				message := item.Message
				if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
					message += " (" + item.Hint + ")"
				}
				rows = append(rows, []string{item.Name, strings.ToUpper(string(item.Status)), message})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if report.HasFailures {
				return errDiagnosticsFailed
			}
			return nil
		},
	}
}
