package main

import (
	"github.com/spf13/cobra"

	"encodec-converter/internal/codec"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(codec.OpusFactory)
}

// newRootCommandWith builds the command tree around factory; tests pass a
// fake engine.
func newRootCommandWith(factory codec.EngineFactory) *cobra.Command {
	ctx := newCommandContext(factory)

	rootCmd := &cobra.Command{
		Use:           "encodec",
		Short:         "Encode audio files into compressed .ecdc artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.bindFlags(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Settings file path (default ~/.encodec-converter/settings.toml)")
	flags.String("output-dir", "", "Directory for encoded files")
	flags.String("device", "", "Execution device: auto, cpu or cuda")
	flags.String("ffmpeg", "", "Path to the ffmpeg binary")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console or json")

	rootCmd.AddCommand(newEncodeCommand(ctx))
	rootCmd.AddCommand(newProfilesCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newInspectCommand())

	return rootCmd
}
