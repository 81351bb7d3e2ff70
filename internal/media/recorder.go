package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"

	"github.com/1ureka/duet/internal/util"
)

// RTPReader is the read side of a remote track.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

var _ RTPReader = (*webrtc.TrackRemote)(nil)

// Recorder consumes remote media. VP8 video is written to an IVF file when a
// path is set; everything else is read and counted.
type Recorder struct {
	path  string
	stats *util.Stats
}

// NewRecorder creates a Recorder writing to path. An empty path only drains.
func NewRecorder(path string, stats *util.Stats) *Recorder {
	if stats == nil {
		stats = &util.Stats{}
	}
	return &Recorder{path: path, stats: stats}
}

// Consume reads track until it ends or ctx is done.
func (r *Recorder) Consume(ctx context.Context, track *webrtc.TrackRemote) error {
	return r.Record(ctx, track, track.Codec().MimeType)
}

// Record reads packets from src until it ends or ctx is done. mimeType
// selects whether the packets are written to the IVF file.
func (r *Recorder) Record(ctx context.Context, src RTPReader, mimeType string) error {
	var w *ivfwriter.IVFWriter
	if r.path != "" && strings.EqualFold(mimeType, webrtc.MimeTypeVP8) {
		var err error
		if w, err = ivfwriter.New(r.path); err != nil {
			return fmt.Errorf("open recording %s: %w", r.path, err)
		}
		defer w.Close()
		util.LogInfo("recording remote video to %s", r.path)
	} else {
		util.LogDebug("draining remote %s track", mimeType)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		pkt, _, err := src.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read remote %s: %w", mimeType, err)
		}
		r.stats.AddMedia(len(pkt.Payload))

		if w != nil {
			if err := w.WriteRTP(pkt); err != nil {
				return fmt.Errorf("write recording %s: %w", r.path, err)
			}
		}
	}
}
