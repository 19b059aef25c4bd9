package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/polw1/mp4ff/media/container/mp4"
)

var subs2vtt = &cobra.Command{
	Use:   "subs2vtt <file>",
	Short: "Convert the first subtitle track to a WebVTT file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		track, err := findAnySubtitleTrack(data)
		if err != nil {
			return err
		}

		outPath := s2vArgs.out
		if outPath == "" {
			ext := filepath.Ext(args[0])
			outPath = strings.TrimSuffix(args[0], ext) + ".vtt"
		}
		out, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer out.Close()

		fmt.Fprintf(out, "WEBVTT\n\n")
		for i, sample := range track.Samples {
			start := vttTimestamp(sample.Start, track.Timescale)
			end := vttTimestamp(sample.Start+uint64(sample.Dur), track.Timescale)
			fmt.Fprintf(out, "%d\n", i+1)
			fmt.Fprintf(out, "%s --> %s\n", start, end)
			if text, ok := mp4.ExtractText(track.Variant, sample.Bytes); ok {
				fmt.Fprintf(out, "%s\n\n", text)
			} else {
				fmt.Fprintf(out, "[binary]\n\n")
			}
		}
		log.Info().Str("out", outPath).Int("cues", len(track.Samples)).Msg("[subs2vtt] written")
		return nil
	},
}

type subs2vttArgs struct {
	out string
}

var s2vArgs subs2vttArgs

func init() {
	rootCmd.AddCommand(subs2vtt)

	subs2vtt.Flags().StringVarP(&s2vArgs.out, "out", "o", "", "output path (default: input with .vtt extension)")
}

// vttTimestamp renders a track time as HH:MM:SS.mmm.
func vttTimestamp(ts uint64, timescale uint32) string {
	if timescale == 0 {
		return "00:00:00.000"
	}
	millis := ts * 1000 / uint64(timescale)
	h := millis / 3600000
	m := millis % 3600000 / 60000
	s := millis % 60000 / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
