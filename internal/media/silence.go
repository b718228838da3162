package media

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const frameDuration = 20 * time.Millisecond

// SampleWriter accepts encoded audio samples.
type SampleWriter interface {
	WriteSample(pionmedia.Sample) error
}

// SilenceSource feeds Opus silence frames to a track at the real-time rate.
// It keeps the audio path alive so connectivity and the remote's packet
// counters can be observed without capture hardware.
type SilenceSource struct {
	w     SampleWriter
	muted atomic.Bool

	ready     chan struct{}
	readyOnce sync.Once
}

// NewSilenceSource creates a source writing to w.
func NewSilenceSource(w SampleWriter) *SilenceSource {
	return &SilenceSource{
		w:     w,
		ready: make(chan struct{}),
	}
}

// Ready is closed once Run has started producing frames.
func (s *SilenceSource) Ready() <-chan struct{} {
	return s.ready
}

// SetMuted pauses or resumes frame output.
func (s *SilenceSource) SetMuted(muted bool) {
	s.muted.Store(muted)
}

// Muted reports whether output is paused.
func (s *SilenceSource) Muted() bool {
	return s.muted.Load()
}

// Run writes a frame every 20ms until ctx is done.
func (s *SilenceSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	s.readyOnce.Do(func() { close(s.ready) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.muted.Load() {
				continue
			}
			if err := s.w.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: frameDuration}); err != nil {
				return err
			}
		}
	}
}
