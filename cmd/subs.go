package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/media/container/mp4"
)

var subs = &cobra.Command{
	Use:   "subs <file>",
	Short: "List the cues of the first subtitle track",
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
		log.Info().Str("variant", string(track.Variant)).
			Uint32("timescale", track.Timescale).
			Int("samples", len(track.Samples)).Msg("[subs] track found")
		if subsArgs.json {
			type cue struct {
				Start uint64 `json:"start"`
				Dur   uint32 `json:"dur"`
				Text  string `json:"text,omitempty"`
			}
			cues := make([]cue, 0, len(track.Samples))
			for _, sample := range track.Samples {
				text, _ := mp4.ExtractText(track.Variant, sample.Bytes)
				cues = append(cues, cue{Start: sample.Start, Dur: sample.Dur, Text: text})
			}
			out, err := jsoniter.MarshalIndent(cues, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		for i, sample := range track.Samples {
			fmt.Printf("Sample %d\n", i+1)
			if text, ok := mp4.ExtractText(track.Variant, sample.Bytes); ok {
				fmt.Printf("  %s\n", text)
			} else {
				fmt.Printf("  [binary %d bytes]\n", len(sample.Bytes))
			}
		}
		return nil
	},
}

type subsCmdArgs struct {
	json bool
}

var subsArgs subsCmdArgs

func init() {
	rootCmd.AddCommand(subs)

	subs.Flags().BoolVar(&subsArgs.json, "json", false, "print as JSON")
}

// findAnySubtitleTrack tries the supported variants in order.
func findAnySubtitleTrack(data []byte) (*mp4.SubtitleTrack, error) {
	for _, variant := range []mp4.SubtitleVariant{mp4.SubtitleWvtt, mp4.SubtitleStpp, mp4.SubtitleTx3g} {
		track, err := mp4.FindSubtitleTrack(data, variant)
		if err == nil {
			return track, nil
		}
		if errs.Code(errs.Cause(err)) != errs.CodeNotFound {
			return nil, err
		}
	}
	return nil, errs.Wrapf(errs.ErrNotFound, "no subtitle track")
}
