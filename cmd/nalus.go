package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/polw1/mp4ff/media/codec/h264parser"
	"github.com/polw1/mp4ff/media/container/mp4"
)

var nalus = &cobra.Command{
	Use:   "nalus <file>",
	Short: "Dump the NAL unit types of every sample of the AVC track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		samples, err := mp4.ExtractAVCTrack(data)
		if err != nil {
			return err
		}
		log.Info().Int("samples", len(samples)).Msg("[nalus] track extracted")
		limit := len(samples)
		if nalusArgs.limit > 0 && nalusArgs.limit < limit {
			limit = nalusArgs.limit
		}
		for i := 0; i < limit; i++ {
			s := samples[i]
			fmt.Printf("%5d start=%d dur=%d size=%d %s\n",
				i, s.Start, s.Dur, s.Size, h264parser.DumpNaluTypes(s.Bytes))
		}
		return nil
	},
}

type nalusCmdArgs struct {
	limit int
}

var nalusArgs nalusCmdArgs

func init() {
	rootCmd.AddCommand(nalus)

	nalus.Flags().IntVarP(&nalusArgs.limit, "limit", "n", 0, "print at most n samples (0 means all)")
}
