package nsfg

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/data"
	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/monitoring"
)

// Default resource names of the 2002 female respondent file.
const (
	DefaultDctFile = "2002FemResp.dct"
	DefaultDatFile = "2002FemResp.dat.gz"
)

type options struct {
	dctFile   string
	datFile   string
	nrows     int
	columns   []string
	allocator memory.Allocator
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// Option configures ReadFemResp and Validate.
type Option func(*options)

// WithDctFile sets the dictionary path.
func WithDctFile(path string) Option {
	return func(o *options) { o.dctFile = path }
}

// WithDatFile sets the gzip-compressed data path.
func WithDatFile(path string) Option {
	return func(o *options) { o.datFile = path }
}

// WithNRows limits the number of respondents read. Zero means all.
func WithNRows(n int) Option {
	return func(o *options) { o.nrows = n }
}

// WithColumns restricts the record to the named variables.
func WithColumns(names ...string) Option {
	return func(o *options) { o.columns = names }
}

// WithAllocator sets the Arrow allocator for the returned record.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.allocator = mem }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records load and check outcomes into m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func newOptions(opts []Option) *options {
	o := &options{
		dctFile:   DefaultDctFile,
		datFile:   DefaultDatFile,
		allocator: memory.DefaultAllocator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ReadFemResp reads the female respondent file into a record, one row per
// respondent. The caller must Release the record.
func ReadFemResp(opts ...Option) (arrow.Record, error) {
	return readFemResp(newOptions(opts))
}

func readFemResp(o *options) (arrow.Record, error) {
	start := time.Now()
	record, err := load(o)

	if o.metrics != nil {
		var rows int64
		if record != nil {
			rows = record.NumRows()
		}
		o.metrics.RecordLoad(rows, time.Since(start), err)
	}
	if err != nil {
		o.logger.Error("failed to load respondent file",
			zap.String("dct_file", o.dctFile),
			zap.String("dat_file", o.datFile),
			zap.Error(err))
		return nil, err
	}

	o.logger.Info("respondent file loaded",
		zap.String("dat_file", o.datFile),
		zap.Int64("rows", record.NumRows()),
		zap.Duration("elapsed", time.Since(start)))
	return record, nil
}

func load(o *options) (arrow.Record, error) {
	dict, err := data.ReadStataDct(o.dctFile)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("dictionary parsed",
		zap.String("dct_file", o.dctFile),
		zap.Int("variables", dict.Len()))

	reader := data.NewReader(dict,
		data.WithAllocator(o.allocator),
		data.WithCompression(data.CompressionGzip),
		data.WithNRows(o.nrows),
		data.WithColumns(o.columns...),
		data.WithLogger(o.logger),
	)
	return reader.ReadFile(o.datFile)
}
