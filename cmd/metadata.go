package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/polw1/mp4ff/media/container/mp4"
)

var metadata = &cobra.Command{
	Use:   "metadata <file>",
	Short: "Print movie metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		md, err := mp4.ReadMetadata(args[0])
		if err != nil {
			return err
		}
		if mdArgs.json {
			out, err := jsoniter.MarshalIndent(md, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		fmt.Println("Metadata:")
		fmt.Printf("  title: %s\n", md.Title)
		if md.HasDuration {
			fmt.Printf("  duration: %s\n", formatDuration(md.DurationSeconds))
		} else {
			fmt.Println("  duration: unknown")
		}
		fmt.Printf("  artist: %s\n", md.Artist)
		fmt.Printf("  album: %s\n", md.Album)
		fmt.Printf("  copyright: %s\n", md.Copyright)
		fmt.Printf("  size: %s\n", formatSize(md.Size))
		return nil
	},
}

type metadataArgs struct {
	json bool
}

var mdArgs metadataArgs

func init() {
	rootCmd.AddCommand(metadata)

	metadata.Flags().BoolVar(&mdArgs.json, "json", false, "print as JSON")
}

func formatDuration(seconds float64) string {
	total := uint64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func formatSize(size uint64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(size)/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
	default:
		return fmt.Sprintf("%.2f GB", float64(size)/(1024*1024*1024))
	}
}
