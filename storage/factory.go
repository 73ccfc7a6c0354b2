package storage

import (
	"context"
	"fmt"

	"albumvault/config"

	"go.uber.org/zap"
)

// New returns the audio store selected by AUDIO_STORE.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (AudioStore, error) {
	switch cfg.AudioStore {
	case "", "disk":
		return NewDiskStore(cfg.AudioDir)
	case "minio":
		return NewMinioStore(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported AUDIO_STORE %q", cfg.AudioStore)
	}
}
