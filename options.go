package annstore

import (
	"github.com/hupe1980/annstore/blobstore"
	"github.com/hupe1980/annstore/codec"
	"github.com/hupe1980/annstore/persistence"
	"github.com/hupe1980/annstore/resource"
)

const (
	// DefaultDir is the storage directory used when none is configured.
	DefaultDir = ".ann_store"
	// DefaultM is the default neighbor fan-out.
	DefaultM = 32
	// DefaultEFConstruction is the default construction search breadth.
	DefaultEFConstruction = 200
	// DefaultEF is the default query search breadth persisted with every index.
	DefaultEF = 128
)

// HNSWParams are the construction and query parameters of a graph.
type HNSWParams struct {
	M              int `yaml:"m"`
	EFConstruction int `yaml:"ef_construction"`
	EF             int `yaml:"ef"`
}

// DefaultHNSWParams returns M=32, efConstruction=200, ef=128.
func DefaultHNSWParams() HNSWParams {
	return HNSWParams{M: DefaultM, EFConstruction: DefaultEFConstruction, EF: DefaultEF}
}

func (p HNSWParams) withDefaults() HNSWParams {
	d := DefaultHNSWParams()
	if p.M <= 0 {
		p.M = d.M
	}
	if p.EFConstruction <= 0 {
		p.EFConstruction = d.EFConstruction
	}
	if p.EF <= 0 {
		p.EF = d.EF
	}
	return p
}

// DimensionPolicy decides what happens to vectors whose length differs from the index dimension.
type DimensionPolicy int

const (
	// DropMismatched skips such vectors and reports them as dropped.
	DropMismatched DimensionPolicy = iota
	// RejectBatch fails the whole call with a *DimensionMismatchError.
	RejectBatch
)

func (p DimensionPolicy) String() string {
	switch p {
	case DropMismatched:
		return "drop"
	case RejectBatch:
		return "reject"
	default:
		return "unknown"
	}
}

type options struct {
	dir              string
	params           HNSWParams
	codec            codec.Codec
	compression      persistence.Compression
	mirror           blobstore.BlobStore
	resources        *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
	upsertPolicy     DimensionPolicy
	rebuildPolicy    DimensionPolicy
	seed             *int64
}

func defaultOptions() options {
	return options{
		dir:              DefaultDir,
		params:           DefaultHNSWParams(),
		codec:            codec.Default,
		compression:      persistence.CompressionNone,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		upsertPolicy:     DropMismatched,
		rebuildPolicy:    DropMismatched,
	}
}

// Option configures a Manager.
type Option func(*options)

// WithDir sets the directory holding the index files. It is created if absent.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithDefaults sets the parameters used when an index is created by AddOrUpdate
// or rebuilt without explicit parameters. Zero fields keep their defaults.
func WithDefaults(p HNSWParams) Option {
	return func(o *options) {
		o.params = p.withDefaults()
	}
}

// WithCodec configures the codec used for sidecar files.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression sets the compression of snapshot payloads.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMirror mirrors every saved index to a blob store and restores missing
// local snapshots from it.
func WithMirror(b blobstore.BlobStore) Option {
	return func(o *options) {
		o.mirror = b
	}
}

// WithResourceController bounds concurrency, memory and bandwidth of mirror transfers.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &annstore.BasicMetricsCollector{}
//	m, _ := annstore.New(annstore.WithMetricsCollector(metrics))
//	// ... use m ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
//
// Example:
//
//	logger := annstore.NewJSONLogger(slog.LevelInfo)
//	m, _ := annstore.New(annstore.WithLogger(logger))
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithDimensionPolicy sets how AddOrUpdate and Rebuild treat vectors of the
// wrong length. Both default to DropMismatched.
func WithDimensionPolicy(upsert, rebuild DimensionPolicy) Option {
	return func(o *options) {
		o.upsertPolicy = upsert
		o.rebuildPolicy = rebuild
	}
}

// WithRandomSeed makes level assignment reproducible. Intended for tests.
func WithRandomSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

type rebuildOptions struct {
	params   *HNSWParams
	capacity int
}

// RebuildOption configures a single Rebuild call.
type RebuildOption func(*rebuildOptions)

// WithRebuildParams overrides the graph parameters for this rebuild. The
// parameters are persisted and kept by later upserts.
func WithRebuildParams(p HNSWParams) RebuildOption {
	return func(o *rebuildOptions) {
		p = p.withDefaults()
		o.params = &p
	}
}

// WithRebuildCapacity sets the initial capacity instead of max(1000, 2*count).
// Values below the item count are raised to it.
func WithRebuildCapacity(n int) RebuildOption {
	return func(o *rebuildOptions) {
		o.capacity = n
	}
}
