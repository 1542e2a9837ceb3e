package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"reencode/internal/codec"
	"reencode/internal/config"
	"reencode/internal/encoding"
	"reencode/internal/inspect"
	"reencode/internal/logging"
	"reencode/internal/mediafile"
	"reencode/internal/services"
)

// FileProcessor handles one path and never returns an error; every outcome
// is a Result.
type FileProcessor interface {
	Process(ctx context.Context, path string) Result
}

// Processor threads one file through filter, inspector, allocator and
// encoder.
type Processor struct {
	cfg            *config.Config
	filter         *mediafile.Filter
	allocator      *mediafile.Allocator
	inspector      inspect.Inspector
	encoder        encoding.Encoder
	family         codec.Family
	deleteOriginal bool
	logger         *slog.Logger
	now            func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the logger.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFilter replaces the extension filter derived from config.
func WithFilter(filter *mediafile.Filter) ProcessorOption {
	return func(p *Processor) {
		if filter != nil {
			p.filter = filter
		}
	}
}

// NewProcessor builds a processor for cfg's target family. The drapto
// backend always writes Matroska, so its outputs use the mkv extension.
func NewProcessor(cfg *config.Config, insp inspect.Inspector, enc encoding.Encoder, opts ...ProcessorOption) (*Processor, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "new processor", "config required", nil)
	}
	if insp == nil || enc == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "new processor", "inspector and encoder required", nil)
	}
	family, ok := codec.Lookup(cfg.Encoding.Target)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "new processor",
			fmt.Sprintf("unknown target codec %q", cfg.Encoding.Target), nil)
	}
	outputExt := cfg.Encoding.DefaultOutputExt
	if strings.EqualFold(cfg.Encoding.Backend, encoding.BackendDrapto) {
		outputExt = "mkv"
	}
	p := &Processor{
		cfg:            cfg,
		filter:         mediafile.NewFilter(outputExt, cfg.Batch.Extensions...),
		allocator:      mediafile.NewAllocator(),
		inspector:      insp,
		encoder:        enc,
		family:         family,
		deleteOriginal: cfg.Encoding.DeleteOriginal,
		logger:         logging.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "batch")
	return p, nil
}

// Family returns the target codec family.
func (p *Processor) Family() codec.Family {
	return p.family
}

// Process handles path. A panic is recovered and reported as a skip.
func (p *Processor) Process(ctx context.Context, path string) (res Result) {
	ctx = services.WithFile(ctx, path)
	logger := logging.WithContext(ctx, p.logger)
	started := p.now()
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "unexpected error processing file", "file_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldImpact, "file skipped; the batch continues"),
			)
			res = Skipped(path, fmt.Sprintf("%s: %v", ReasonUnexpected, r))
		}
		res.Elapsed = p.now().Sub(started)
	}()
	return p.process(ctx, path, logger)
}

func (p *Processor) process(ctx context.Context, path string, logger *slog.Logger) Result {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Skipped(path, ReasonMissing)
	case err != nil:
		return p.unexpected(path, err, logger)
	case info.IsDir():
		return Skipped(path, ReasonDirectory)
	case !info.Mode().IsRegular():
		return Skipped(path, ReasonNotRegular)
	case info.Size() == 0:
		return Skipped(path, ReasonZeroSize)
	}

	decision, ok := p.filter.Classify(filepath.Base(path))
	if !ok {
		return Skipped(path, decision.Reason)
	}

	ctx = services.WithStage(ctx, "inspect")
	already, codecs, err := inspect.HasFamily(ctx, p.inspector, path, p.family)
	if err != nil {
		return Skipped(path, fmt.Sprintf("%s: %v", ReasonProbeFailed, err))
	}
	if len(codecs) == 0 {
		return Skipped(path, "no video stream")
	}
	if already {
		return Skipped(path, "already "+p.family.Name)
	}

	dir := filepath.Dir(path)
	alloc, err := p.allocator.Allocate(dir, decision.Stem, decision.OutputExt)
	if err != nil {
		return p.unexpected(path, err, logger)
	}

	ctx = services.WithStage(ctx, "encode")
	req := encoding.RequestFor(p.cfg, p.family, path, alloc.Path)
	logger.Debug("encode planned",
		logging.Any("source_codecs", codecs),
		logging.String("output", alloc.Path),
		logging.Bool("temporary_name", alloc.Temporary),
	)
	if err := p.encoder.Encode(ctx, req); err != nil {
		p.release(alloc, logger)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Failed(path, ctxErr)
		}
		return Failed(path, err)
	}

	return p.finalize(path, info.Size(), alloc, req, logger)
}

func (p *Processor) finalize(path string, before int64, alloc mediafile.Allocation, req encoding.Request, logger *slog.Logger) Result {
	outInfo, err := os.Stat(alloc.Path)
	if err == nil && outInfo.Size() == 0 {
		p.release(alloc, logger)
		err = fs.ErrNotExist
	}
	if err != nil {
		return Failed(path, services.Wrap(services.ErrExternalTool, "batch", "finalize", "encoder reported success without output", err))
	}
	res := Processed(path, alloc.Path, before, outInfo.Size())

	if err := os.Remove(req.LogPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Debug("job log not removed", logging.String("log_path", req.LogPath), logging.Error(err))
	}

	if !p.deleteOriginal {
		return res
	}
	if err := os.Remove(path); err != nil {
		logging.WarnWithContext(logger, "could not delete original", "original_delete_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "both the original and the re-encoded file remain"),
		)
		return res
	}
	if !alloc.Temporary {
		return res
	}

	// A suffixed output takes over the original input's name.
	if err := os.Rename(alloc.Path, path); err != nil {
		logging.WarnWithContext(logger, "could not rename output into place", "output_rename_failed",
			logging.String("output", alloc.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "re-encoded file keeps its suffixed name"),
		)
		return res
	}
	res.Output = path
	return res
}

// release drops an output reservation the encoder never wrote to.
func (p *Processor) release(alloc mediafile.Allocation, logger *slog.Logger) {
	if err := alloc.Release(); err != nil {
		logger.Debug("output reservation not removed", logging.String("output", alloc.Path), logging.Error(err))
	}
}

func (p *Processor) unexpected(path string, err error, logger *slog.Logger) Result {
	logging.ErrorWithContext(logger, "unexpected error processing file", "file_unexpected_error",
		logging.Error(err),
		logging.String(logging.FieldImpact, "file skipped; the batch continues"),
	)
	return Skipped(path, fmt.Sprintf("%s: %v", ReasonUnexpected, err))
}

var _ FileProcessor = (*Processor)(nil)
