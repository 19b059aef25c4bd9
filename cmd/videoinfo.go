package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/media/codec/h264parser"
	"github.com/polw1/mp4ff/media/container/mp4"
)

var videoinfo = &cobra.Command{
	Use:   "videoinfo <file>",
	Short: "Print codec and size of the first video track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		info, err := mp4.ReadVideoInfo(args[0])
		if err != nil {
			if errs.Code(errs.Cause(err)) == errs.CodeNotFound {
				fmt.Println("no video track found")
				return nil
			}
			return err
		}
		codecString := ""
		if data, err := os.ReadFile(args[0]); err == nil {
			if rec, err := mp4.ExtractDecoderConfig(data); err == nil && len(rec.SPS) > 0 {
				if sps, err := h264parser.ParseSPS(rec.SPS[0], false); err == nil {
					codecString = h264parser.CodecString(info.Codec, sps)
				}
			}
		}
		if viArgs.json {
			out, err := jsoniter.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		fmt.Printf("codec: %s\n", info.Codec)
		fmt.Printf("width: %d\n", info.Width)
		fmt.Printf("height: %d\n", info.Height)
		if codecString != "" {
			fmt.Printf("codecs: %s\n", codecString)
		}
		return nil
	},
}

type videoinfoArgs struct {
	json bool
}

var viArgs videoinfoArgs

func init() {
	rootCmd.AddCommand(videoinfo)

	videoinfo.Flags().BoolVar(&viArgs.json, "json", false, "print as JSON")
}
