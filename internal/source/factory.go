package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wadlib/internal/config"
)

// NewSourceFromConfig creates a Source implementation based on the source config type.
func NewSourceFromConfig(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	switch cfg.Type {
	case "memory":
		return NewMemorySource(cfg.Name), nil
	case "http", "":
		var client *http.Client
		if cfg.HTTPTimeoutSeconds > 0 {
			client = &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second}
		}
		return NewHTTPSource(cfg.Name, cfg.HTTPBaseURL, client).WithUserAgent(cfg.HTTPUserAgent), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 source requires s3_bucket to be set")
		}
		return NewS3Source(ctx, cfg.Name, S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem source requires fs_root to be set")
		}
		return NewFileSystemSource(cfg.Name, cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
