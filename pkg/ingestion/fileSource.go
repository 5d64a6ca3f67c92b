package ingestion

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FileSource replays a JSON array of messages in file order.
type FileSource struct {
	path      string
	processor *Processor
	logger    *zap.Logger
}

func NewFileSource(path string, processor *Processor, l *zap.Logger) *FileSource {
	return &FileSource{
		path:      path,
		processor: processor,
		logger:    l,
	}
}

func (f *FileSource) load() ([]*Message, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", f.path)
	}
	messages := make([]*Message, 0)
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "failed to parse %s: %v", f.path, err)
	}
	return messages, nil
}

// Run applies every message and stops at the first failure. It returns the
// number of messages applied.
func (f *FileSource) Run(ctx context.Context) (int, error) {
	messages, err := f.load()
	if err != nil {
		return 0, err
	}
	for i, msg := range messages {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if msg == nil || len(msg.Event) == 0 {
			return i, errors.Wrapf(ErrMalformedMessage, "message %d has no event", i)
		}
		if err := f.processor.ProcessMessage(ctx, msg); err != nil {
			return i, errors.Wrapf(err, "failed to apply message %d", i)
		}
	}
	f.logger.Sugar().Infow("Replayed events",
		zap.String("file", f.path),
		zap.Int("count", len(messages)),
	)
	return len(messages), nil
}
