package transcription

import (
	"context"
	"os"

	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/services"
)

func (o *Orchestrator) runDirect(ctx context.Context, jobID, filePath, modelSize string, duration float64) (outcome, error) {
	logger := logging.WithContext(ctx, o.logger)
	o.deps.Publisher.Publish(jobID, 10, "preparing transcription")

	var size int64
	if info, err := os.Stat(filePath); err == nil {
		size = info.Size()
	}
	timeout := o.settings.Timeout.For(duration, size)
	logger.Info("direct run",
		logging.Duration("timeout", timeout),
		logging.Int64("size_bytes", size),
	)

	res, err := o.deps.Engine.Run(ctx, engine.Request{
		Label:     "direct",
		InputPath: filePath,
		ModelSize: modelSize,
		Timeout:   timeout,
		OnProgress: func(percent int, message string) {
			o.deps.Publisher.Publish(jobID, min(90, max(10, percent)), message)
		},
	})
	if err != nil {
		return outcome{}, err
	}
	text, err := res.LoadText()
	if err != nil {
		return outcome{}, services.Wrap(services.ErrParse, "direct", "read transcript", "", err)
	}
	return outcome{text: text, processingSeconds: res.ProcessingTime}, nil
}
