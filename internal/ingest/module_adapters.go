package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"originmesh/internal/orchestrator"
)

// streamHandle is the ProviderStreamHandle minted by ProviderModule.
// Id is the primary ingest endpoint SRS returned for the channel; Name is
// the stream name the Orchestrator keyed the pull request by.
type streamHandle struct {
	id   string
	name string
}

func (h *streamHandle) ID() string   { return h.id }
func (h *streamHandle) Name() string { return h.name }

// ProviderModule adapts a channelAdapter (the SRS ingest channel API) into
// an orchestrator.Provider: pulling a stream provisions an ingest channel
// keyed by the application's composed name, and stopping it tears the
// channel back down.
type ProviderModule struct {
	channel channelAdapter
	kind    orchestrator.ProviderType
	logger  *slog.Logger
}

// NewProviderModule constructs a ProviderModule backed by channel,
// advertising kind as its ProviderType.
func NewProviderModule(channel channelAdapter, kind orchestrator.ProviderType, logger *slog.Logger) *ProviderModule {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderModule{channel: channel, kind: kind, logger: logger}
}

func (p *ProviderModule) GetModuleType() orchestrator.ModuleType {
	return orchestrator.ModuleProvider
}

func (p *ProviderModule) GetProviderType() orchestrator.ProviderType {
	return p.kind
}

// OnCreateApplication does no SRS-side provisioning of its own; channel
// provisioning happens per-stream in PullStream.
func (p *ProviderModule) OnCreateApplication(ctx context.Context, app *orchestrator.Application) bool {
	return true
}

func (p *ProviderModule) OnDeleteApplication(ctx context.Context, app *orchestrator.Application) bool {
	return true
}

// PullStream provisions an SRS ingest channel for streamName using the
// first resolved upstream URL as the channel's stream key, and returns a
// handle keyed by the primary ingest endpoint SRS assigns.
func (p *ProviderModule) PullStream(ctx context.Context, app *orchestrator.Application, streamName string, urls []string, offset int64) (orchestrator.ProviderStreamHandle, error) {
	if len(urls) == 0 {
		return nil, errors.New("pull stream: no upstream urls resolved")
	}

	channelID := fmt.Sprintf("%s/%s", app.ComposedName, streamName)
	primary, _, err := p.channel.CreateChannel(ctx, channelID, urls[0])
	if err != nil {
		return nil, fmt.Errorf("provision ingest channel: %w", err)
	}

	p.logger.Info("provider pulled stream", "app", app.ComposedName, "stream", streamName, "ingest", primary)
	return &streamHandle{id: primary, name: streamName}, nil
}

// StopStream tears down the SRS ingest channel backing handle.
func (p *ProviderModule) StopStream(ctx context.Context, app *orchestrator.Application, handle orchestrator.ProviderStreamHandle) bool {
	channelID := fmt.Sprintf("%s/%s", app.ComposedName, handle.Name())
	if err := p.channel.DeleteChannel(ctx, channelID); err != nil {
		p.logger.Warn("stop stream failed", "app", app.ComposedName, "stream", handle.Name(), "error", err)
		return false
	}
	return true
}

// CheckOriginAvailability reports whether at least one upstream URL was
// supplied. The channel adapter has no dedicated probe endpoint, so
// availability is judged purely on whether there is anything to pull.
func (p *ProviderModule) CheckOriginAvailability(ctx context.Context, urls []string) bool {
	return len(urls) > 0
}

// PublisherModule adapts an applicationAdapter (the OME application API)
// into an orchestrator.Module of type Publisher: creating an Application
// provisions a playback-facing OME application, and deleting it tears the
// OME application down.
type PublisherModule struct {
	application applicationAdapter
	renditions  []Rendition
	logger      *slog.Logger
}

// NewPublisherModule constructs a PublisherModule backed by application,
// using renditions as the default rendition ladder passed on create.
func NewPublisherModule(application applicationAdapter, renditions []Rendition, logger *slog.Logger) *PublisherModule {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublisherModule{application: application, renditions: renditions, logger: logger}
}

func (m *PublisherModule) GetModuleType() orchestrator.ModuleType {
	return orchestrator.ModulePublisher
}

func (m *PublisherModule) renditionNames() []string {
	names := make([]string, len(m.renditions))
	for i, r := range m.renditions {
		names[i] = r.Name
	}
	return names
}

func (m *PublisherModule) OnCreateApplication(ctx context.Context, app *orchestrator.Application) bool {
	origin, playback, err := m.application.CreateApplication(ctx, app.ComposedName, m.renditionNames())
	if err != nil {
		m.logger.Warn("publisher create application failed", "app", app.ComposedName, "error", err)
		return false
	}
	m.logger.Info("publisher application created", "app", app.ComposedName, "origin", origin, "playback", playback)
	return true
}

func (m *PublisherModule) OnDeleteApplication(ctx context.Context, app *orchestrator.Application) bool {
	if err := m.application.DeleteApplication(ctx, app.ComposedName); err != nil {
		m.logger.Warn("publisher delete application failed", "app", app.ComposedName, "error", err)
		return false
	}
	return true
}

// TranscoderModule adapts a transcoderAdapter (the ffmpeg job API) into an
// orchestrator.Module of type Transcoder. It does no work on application
// create/delete by itself; StartStreamJobs/StopStreamJobs are invoked
// directly by callers that have resolved a Stream's origin URL, since job
// lifecycle is scoped to individual streams rather than whole
// Applications.
type TranscoderModule struct {
	transcoder transcoderAdapter
	logger     *slog.Logger
}

// NewTranscoderModule constructs a TranscoderModule backed by transcoder.
func NewTranscoderModule(transcoder transcoderAdapter, logger *slog.Logger) *TranscoderModule {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscoderModule{transcoder: transcoder, logger: logger}
}

func (t *TranscoderModule) GetModuleType() orchestrator.ModuleType {
	return orchestrator.ModuleTranscoder
}

func (t *TranscoderModule) OnCreateApplication(ctx context.Context, app *orchestrator.Application) bool {
	return true
}

func (t *TranscoderModule) OnDeleteApplication(ctx context.Context, app *orchestrator.Application) bool {
	return true
}

// StartStreamJobs starts the configured rendition ladder for a single
// pulled stream and returns the resulting job ids and effective
// renditions.
func (t *TranscoderModule) StartStreamJobs(ctx context.Context, app *orchestrator.Application, streamName, originURL string, ladder []Rendition) ([]string, []Rendition, error) {
	jobIDs, renditions, err := t.transcoder.StartJobs(ctx, app.ComposedName, streamName, originURL, ladder)
	if err != nil {
		return nil, nil, fmt.Errorf("start transcode jobs: %w", err)
	}
	return jobIDs, renditions, nil
}

// StopStreamJobs stops every job id previously returned by
// StartStreamJobs for a stream, continuing past individual failures and
// returning the aggregate error, if any.
func (t *TranscoderModule) StopStreamJobs(ctx context.Context, jobIDs []string) error {
	var errs []error
	for _, jobID := range jobIDs {
		if err := t.transcoder.StopJob(ctx, jobID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("stop transcode jobs: %d failures, first: %w", len(errs), errs[0])
	}
	return nil
}
