package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Data exchange traffic counters
// ──────────────────────────────────────────────────────────────────────────────

// Stats counts DataChannel traffic for one session. The zero value is ready to use.
type Stats struct {
	MsgsSent  atomic.Int64 // text messages written to the DataChannel
	MsgsRecv  atomic.Int64 // text messages read from the DataChannel
	BytesSent atomic.Int64 // cumulative payload bytes written
	BytesRecv atomic.Int64 // cumulative payload bytes read
	MediaRecv atomic.Int64 // cumulative RTP payload bytes received on remote tracks
}

func (s *Stats) AddSent(n int)  { s.MsgsSent.Add(1); s.BytesSent.Add(int64(n)) }
func (s *Stats) AddRecv(n int)  { s.MsgsRecv.Add(1); s.BytesRecv.Add(int64(n)) }
func (s *Stats) AddMedia(n int) { s.MediaRecv.Add(int64(n)) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs s every interval when
// anything moved. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, s *Stats, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevSent, prevRecv, prevMedia, prevMsgs int64
		for {
			select {
			case <-ticker.C:
				sent := s.BytesSent.Load()
				recv := s.BytesRecv.Load()
				media := s.MediaRecv.Load()
				msgs := s.MsgsSent.Load() + s.MsgsRecv.Load()

				outS := float64(sent-prevSent) / secs
				inS := float64(recv-prevRecv) / secs
				mediaS := float64(media-prevMedia) / secs
				dMsgs := msgs - prevMsgs

				if dMsgs > 0 || mediaS > 10 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, mediaS, dMsgs))
				}

				prevSent = sent
				prevRecv = recv
				prevMedia = media
				prevMsgs = msgs

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS, mediaS float64, msgs int64) string {
	return fmt.Sprintf("Chat in: %s/s | Chat out: %s/s | Media: %s/s | Msgs: %3d",
		formatBytes(inS),
		formatBytes(outS),
		formatBytes(mediaS),
		msgs,
	)
}
