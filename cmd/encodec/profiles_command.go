package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List model variants, their audio layout and supported bitrates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := ctx.codecRegistry()
			if err != nil {
				return err
			}

			status := map[string]string{}
			for _, s := range registry.Status() {
				status[string(s.Variant)] = s.Detail
			}

			rows := make([][]string, 0, 2)
			for _, profile := range registry.Profiles() {
				rows = append(rows, []string{
					string(profile.Variant),
					strconv.Itoa(profile.SampleRate) + " Hz",
					profile.ChannelLabel(),
					profile.BitrateList(),
					status[string(profile.Variant)],
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Variant", "Sample rate", "Channels", "Bitrates", "Engine"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
