package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/voxahq/voxa/pkg/audio"
	"github.com/voxahq/voxa/pkg/music"
	"github.com/voxahq/voxa/pkg/types"
)

// MusicChecker probes the remote music service. Readiness fails while the
// service is unreachable; the pipeline itself keeps running in offline mode,
// so this reports degraded operation rather than a crash.
func MusicChecker(svc music.Service) Checker {
	return Checker{
		Name: "music",
		Check: func(ctx context.Context) error {
			_, err := svc.CurrentlyPlaying(ctx)
			if errors.Is(err, music.ErrUnavailable) {
				return err
			}
			// Other errors (nothing playing, per-track failures) do not mean
			// the service is down.
			return nil
		},
	}
}

// entryLister is the slice of the offline store the checker needs.
type entryLister interface {
	Entries(ctx context.Context) ([]types.CatalogItem, error)
}

// OfflineStoreChecker verifies the offline catalog index is readable.
func OfflineStoreChecker(store entryLister) Checker {
	return Checker{
		Name: "offline_store",
		Check: func(ctx context.Context) error {
			_, err := store.Entries(ctx)
			return err
		},
	}
}

// deviceReporter is the slice of the audio source the checker needs.
type deviceReporter interface {
	Device() audio.DeviceInfo
}

// AudioChecker verifies an input device is attached to the capture source.
func AudioChecker(src deviceReporter) Checker {
	return Checker{
		Name: "audio",
		Check: func(_ context.Context) error {
			if src.Device().ID == "" {
				return fmt.Errorf("no input device attached")
			}
			return nil
		},
	}
}
