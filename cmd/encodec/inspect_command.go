package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"encodec-converter/internal/codec"
	"encodec-converter/internal/encode"
)

func newInspectCommand() *cobra.Command {
	var showChunks bool

	cmd := &cobra.Command{
		Use:   "inspect <file.ecdc>",
		Short: "Show the manifest of an encoded artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			manifest, payloads, err := codec.ReadContainer(path)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Format", manifest.Format},
				{"Encoder", manifest.Encoder},
				{"Variant", manifest.Variant},
				{"Sample rate", strconv.Itoa(manifest.SampleRate) + " Hz"},
				{"Channels", strconv.Itoa(manifest.Channels)},
				{"Bitrate", fmt.Sprintf("%g kbps", manifest.Bitrate)},
				{"Device", manifest.Device},
				{"Chunks", humanize.Comma(int64(len(payloads)))},
				{"Audio", encode.FormatAudioDuration(manifest.DurationSeconds())},
				{"Size", humanize.Bytes(uint64(info.Size()))},
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))

			if showChunks {
				chunkRows := make([][]string, 0, len(payloads))
				for i, payload := range payloads {
					frames := 0
					if i < len(manifest.ChunkFrames) {
						frames = manifest.ChunkFrames[i]
					}
					chunkRows = append(chunkRows, []string{
						strconv.Itoa(i),
						humanize.Comma(int64(frames)),
						humanize.Bytes(uint64(len(payload))),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Chunk", "Frames", "Payload"}, chunkRows,
					[]columnAlignment{alignRight, alignRight, alignRight}))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showChunks, "chunks", false, "List every chunk")
	return cmd
}
