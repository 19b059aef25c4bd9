package cmd

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/media/codec/h264parser"
	"github.com/polw1/mp4ff/media/container/mp4"
)

var serve = &cobra.Command{
	Use:   "serve <file>",
	Short: "Serve the raw mp4 and its AVC track as a live Annex B stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		ts, err := newTrackServer(data)
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/video.mp4", ts.serveMP4)
		mux.HandleFunc("/stream.h264", ts.serveStream)
		srv := &http.Server{Addr: serveArgs.addr, Handler: mux}

		ctx, cancel := context.WithTimeout(cmd.Context(), duration)
		defer cancel()
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()

		log.Info().Str("addr", serveArgs.addr).
			Int("samples", len(ts.samples)).
			Uint32("timescale", ts.timescale).
			Dur("duration", duration).
			Msg("[serve] listening")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

type serveCmdArgs struct {
	addr string
}

var serveArgs serveCmdArgs

func init() {
	rootCmd.AddCommand(serve)

	serve.Flags().StringVarP(&serveArgs.addr, "addr", "a", "127.0.0.1:8080", "listen address")
}

type trackServer struct {
	data      []byte
	samples   []mp4.Sample
	timescale uint32
	// parameter sets as an Annex B prefix sent before the samples
	params []byte
}

func newTrackServer(data []byte) (*trackServer, error) {
	samples, err := mp4.ExtractAVCTrack(data)
	if err != nil {
		return nil, err
	}
	timescale, err := mp4.GetVideoTimescale(data)
	if err != nil {
		return nil, err
	}

	var spsList, ppsList [][]byte
	if len(samples) > 0 {
		if nalus, err := h264parser.GetNALUsFromSample(samples[0].Bytes); err == nil {
			for _, nalu := range nalus {
				if len(nalu) == 0 {
					continue
				}
				switch h264parser.GetNaluType(nalu[0]) {
				case h264parser.NALU_SPS:
					spsList = append(spsList, nalu)
				case h264parser.NALU_PPS:
					ppsList = append(ppsList, nalu)
				}
			}
		}
	}
	if len(spsList) == 0 || len(ppsList) == 0 {
		rec, err := mp4.ExtractDecoderConfig(data)
		if err != nil {
			return nil, errs.Wrapf(err, "serve: no parameter sets")
		}
		if len(spsList) == 0 {
			spsList = rec.SPS
		}
		if len(ppsList) == 0 {
			ppsList = rec.PPS
		}
	}
	var params []byte
	for _, nalu := range spsList {
		params = append(params, 0, 0, 0, 1)
		params = append(params, nalu...)
	}
	for _, nalu := range ppsList {
		params = append(params, 0, 0, 0, 1)
		params = append(params, nalu...)
	}

	return &trackServer{data: data, samples: samples, timescale: timescale, params: params}, nil
}

func (ts *trackServer) serveMP4(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("remote", r.RemoteAddr).Msg("[serve] mp4 request")
	w.Header().Set("Content-Type", "video/mp4")
	w.Write(ts.data)
}

// serveStream writes the parameter sets and then every sample converted to
// Annex B, paced against the wall clock by decode time.
func (ts *trackServer) serveStream(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("remote", r.RemoteAddr).Msg("[serve] h264 stream request")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "video/h264")
	if _, err := w.Write(ts.params); err != nil {
		return
	}
	flusher.Flush()

	start := time.Now()
	for _, sample := range ts.samples {
		target := start.Add(time.Duration(float64(sample.Start) / float64(ts.timescale) * float64(time.Second)))
		if wait := time.Until(target); wait > 0 {
			select {
			case <-time.After(wait):
			case <-r.Context().Done():
				return
			}
		}
		if _, err := w.Write(h264parser.ConvertSampleToByteStream(sample.Bytes)); err != nil {
			return
		}
		flusher.Flush()
	}
}
