package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/annstore"
	"github.com/hupe1980/annstore/blobstore"
	minioblob "github.com/hupe1980/annstore/blobstore/minio"
	s3blob "github.com/hupe1980/annstore/blobstore/s3"
	"github.com/hupe1980/annstore/codec"
	"github.com/hupe1980/annstore/persistence"
	"github.com/hupe1980/annstore/resource"
)

// Logger builds the logger described by c.Log.
func (c *Config) Logger() (*annstore.Logger, error) {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(c.Log.Format, "json") {
		return annstore.NewJSONLogger(level), nil
	}
	return annstore.NewTextLogger(level), nil
}

// MirrorStore builds the configured blob store, or nil when mirroring is disabled.
func (c *Config) MirrorStore(ctx context.Context) (blobstore.BlobStore, error) {
	m := c.Mirror
	switch m.Kind {
	case "":
		return nil, nil
	case "local":
		return blobstore.NewLocalStore(m.Path), nil
	case "s3":
		optFns := []func(o *s3blob.Options){s3blob.WithPrefix(m.Prefix)}
		if m.Region != "" {
			optFns = append(optFns, s3blob.WithRegion(m.Region))
		}
		if m.Endpoint != "" {
			optFns = append(optFns, s3blob.WithEndpoint(m.Endpoint, true))
		}
		store, err := s3blob.New(ctx, m.Bucket, optFns...)
		if err != nil {
			return nil, fmt.Errorf("config: s3 client: %w", err)
		}
		return store, nil
	case "minio":
		client, err := minio.New(m.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(m.AccessKey, m.SecretKey, ""),
			Secure: m.UseSSL,
			Region: m.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("config: minio client: %w", err)
		}
		return minioblob.NewStore(client, m.Bucket, m.Prefix), nil
	default:
		return nil, fmt.Errorf("config: unknown mirror kind %q", m.Kind)
	}
}

// Options translates c into Manager options.
func (c *Config) Options(ctx context.Context) ([]annstore.Option, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	compression, err := persistence.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	sidecar, err := codec.Parse(c.Codec)
	if err != nil {
		return nil, err
	}
	upsert, err := ParseDimensionPolicy(c.Dimensions.Upsert)
	if err != nil {
		return nil, err
	}
	rebuild, err := ParseDimensionPolicy(c.Dimensions.Rebuild)
	if err != nil {
		return nil, err
	}

	opts := []annstore.Option{
		annstore.WithDir(c.Dir),
		annstore.WithDefaults(c.Index),
		annstore.WithCompression(compression),
		annstore.WithCodec(sidecar),
		annstore.WithDimensionPolicy(upsert, rebuild),
		annstore.WithLogger(logger),
	}

	mirror, err := c.MirrorStore(ctx)
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		opts = append(opts,
			annstore.WithMirror(mirror),
			annstore.WithResourceController(resource.NewController(resource.Config{
				MemoryLimitBytes:     c.Resources.MemoryLimitBytes,
				MaxBackgroundWorkers: c.Resources.MaxBackgroundWorkers,
				IOLimitBytesPerSec:   c.Resources.IOLimitBytesPerSec,
			})),
		)
	}

	return opts, nil
}
