// Package media supplies the local video track from an IVF file and
// consumes the remote one.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/1ureka/duet/internal/util"
)

// ErrMediaAcquisition is returned when local media cannot be opened.
var ErrMediaAcquisition = errors.New("media acquisition failed")

const defaultFrameDuration = 33 * time.Millisecond

// FileSource plays a VP8 IVF file into a local track.
type FileSource struct {
	path   string
	file   *os.File
	reader *ivfreader.IVFReader
	track  *webrtc.TrackLocalStaticSample

	frameDuration time.Duration
	frames        atomic.Int64
}

// OpenIVF opens path and prepares a VP8 track for it. Any failure matches
// ErrMediaAcquisition.
func OpenIVF(path string) (*FileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaAcquisition, err)
	}

	reader, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrMediaAcquisition, path, err)
	}
	if header.FourCC != "VP80" {
		file.Close()
		return nil, fmt.Errorf("%w: %s: unsupported codec %q, want VP80", ErrMediaAcquisition, path, header.FourCC)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "duet")
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrMediaAcquisition, err)
	}

	d := defaultFrameDuration
	if header.TimebaseDenominator > 0 && header.TimebaseNumerator > 0 {
		d = time.Duration(uint64(time.Second) * uint64(header.TimebaseNumerator) / uint64(header.TimebaseDenominator))
	}

	util.LogDebug("video source %s: %dx%d, %s per frame", path, header.Width, header.Height, d)
	return &FileSource{
		path:          path,
		file:          file,
		reader:        reader,
		track:         track,
		frameDuration: d,
	}, nil
}

// Track returns the local track to attach to the session.
func (s *FileSource) Track() webrtc.TrackLocal { return s.track }

// FrameDuration returns the pacing interval derived from the file's timebase.
func (s *FileSource) FrameDuration() time.Duration { return s.frameDuration }

// Frames returns the number of frames written so far.
func (s *FileSource) Frames() int64 { return s.frames.Load() }

// Stream writes one frame per frame interval until the file ends or ctx is
// done. Reaching the end of the file is not an error.
func (s *FileSource) Stream(ctx context.Context) error {
	ticker := time.NewTicker(s.frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}

		frame, _, err := s.reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			util.LogInfo("video source %s: end of file after %d frames", s.path, s.Frames())
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame from %s: %w", s.path, err)
		}

		if err := s.track.WriteSample(pionmedia.Sample{Data: frame, Duration: s.frameDuration}); err != nil {
			return fmt.Errorf("write video sample: %w", err)
		}
		s.frames.Add(1)
	}
}

// Close releases the file.
func (s *FileSource) Close() error { return s.file.Close() }
