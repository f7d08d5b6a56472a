//go:build !cgo

package capture

import (
	"context"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/pion/webrtc/v4"
)

// Source reports ErrUnavailable from Acquire in builds without cgo.
type Source struct {
	media.MuteState
}

var _ media.Source = (*Source)(nil)

func New(Options) *Source { return &Source{} }

func (s *Source) Acquire(context.Context) ([]webrtc.TrackLocal, error) {
	return nil, ErrUnavailable
}

func (s *Source) Close() error { return nil }

func Devices() ([]Device, error) { return nil, ErrUnavailable }
