package util

import "testing"

func TestFormatBytesFixedWidth(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		got := formatBytes(tc.in)
		if got != tc.want {
			t.Errorf("formatBytes(%v) = %q, want %q", tc.in, got, tc.want)
		}
		if len(got) != 8 {
			t.Errorf("formatBytes(%v) has width %d, want 8", tc.in, len(got))
		}
	}
}

func TestStatsCounters(t *testing.T) {
	var s Stats
	s.AddSent(5)
	s.AddSent(7)
	s.AddRecv(3)
	s.AddMedia(1200)

	if got := s.MsgsSent.Load(); got != 2 {
		t.Errorf("MsgsSent = %d, want 2", got)
	}
	if got := s.BytesSent.Load(); got != 12 {
		t.Errorf("BytesSent = %d, want 12", got)
	}
	if got := s.MsgsRecv.Load(); got != 1 {
		t.Errorf("MsgsRecv = %d, want 1", got)
	}
	if got := s.MediaRecv.Load(); got != 1200 {
		t.Errorf("MediaRecv = %d, want 1200", got)
	}
}
