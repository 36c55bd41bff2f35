package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPController orchestrates ingest operations via REST endpoints,
// delegating each external call to the channel, application, and
// transcoder adapters built from its Config.
type HTTPController struct {
	config      Config
	channel     channelAdapter
	application applicationAdapter
	transcoder  transcoderAdapter
}

func (c *HTTPController) BootStream(ctx context.Context, params BootParams) (BootResult, error) {
	if params.ChannelID == "" || params.StreamKey == "" {
		return BootResult{}, fmt.Errorf("channelID and streamKey are required")
	}

	primary, backup, err := c.channel.CreateChannel(ctx, params.ChannelID, params.StreamKey)
	if err != nil {
		return BootResult{}, fmt.Errorf("provision SRS channel: %w", err)
	}

	origin, playback, err := c.application.CreateApplication(ctx, params.ChannelID, params.Renditions)
	if err != nil {
		_ = c.channel.DeleteChannel(ctx, params.ChannelID)
		return BootResult{}, fmt.Errorf("provision OME application: %w", err)
	}

	jobIDs, renditions, err := c.transcoder.StartJobs(ctx, params.ChannelID, params.SessionID, origin, c.config.LadderProfiles)
	if err != nil {
		_ = c.application.DeleteApplication(ctx, params.ChannelID)
		_ = c.channel.DeleteChannel(ctx, params.ChannelID)
		return BootResult{}, fmt.Errorf("start transcoder jobs: %w", err)
	}

	return BootResult{
		PrimaryIngest: primary,
		BackupIngest:  backup,
		OriginURL:     origin,
		PlaybackURL:   playback,
		Renditions:    renditions,
		JobIDs:        jobIDs,
	}, nil
}

func (c *HTTPController) ShutdownStream(ctx context.Context, channelID, sessionID string, jobIDs []string) error {
	var errs []string
	for _, jobID := range jobIDs {
		if err := c.transcoder.StopJob(ctx, jobID); err != nil {
			errs = append(errs, fmt.Sprintf("stop job %s: %v", jobID, err))
		}
	}
	if err := c.application.DeleteApplication(ctx, channelID); err != nil {
		errs = append(errs, fmt.Sprintf("delete OME app: %v", err))
	}
	if err := c.channel.DeleteChannel(ctx, channelID); err != nil {
		errs = append(errs, fmt.Sprintf("delete SRS channel: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf(strings.Join(errs, "; "))
	}
	return nil
}

func (c *HTTPController) TranscodeUpload(ctx context.Context, params UploadTranscodeParams) (UploadTranscodeResult, error) {
	jobIDs, renditions, err := c.transcoder.StartJobs(ctx, params.ChannelID, params.UploadID, params.SourceURL, params.Renditions)
	if err != nil {
		return UploadTranscodeResult{}, fmt.Errorf("start upload transcode: %w", err)
	}
	jobID := ""
	if len(jobIDs) > 0 {
		jobID = jobIDs[0]
	}
	return UploadTranscodeResult{Renditions: renditions, JobID: jobID}, nil
}

func (c *HTTPController) HealthChecks(ctx context.Context) []HealthStatus {
	httpClient := c.config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	services := []struct {
		name   string
		base   string
		header string
	}{
		{name: "srs", base: c.config.SRSBaseURL, header: bearer(c.config.SRSToken)},
		{name: "ovenmediaengine", base: c.config.OMEBaseURL, header: basicAuth(c.config.OMEUsername, c.config.OMEPassword)},
		{name: "transcoder", base: c.config.JobBaseURL, header: bearer(c.config.JobToken)},
	}

	statuses := make([]HealthStatus, 0, len(services))
	for _, service := range services {
		status := HealthStatus{Component: service.name}
		if service.base == "" {
			status.Status = "unknown"
			status.Detail = "base URL not configured"
			statuses = append(statuses, status)
			continue
		}
		url := fmt.Sprintf("%s%s", strings.TrimRight(service.base, "/"), c.config.HealthEndpoint)
		mutate := func(req *http.Request) {
			if service.header == "" {
				return
			}
			if strings.HasPrefix(strings.ToLower(service.header), "basic") {
				req.SetBasicAuth(c.config.OMEUsername, c.config.OMEPassword)
			} else {
				req.Header.Set("Authorization", service.header)
			}
		}

		err := doWithRetry(ctx, httpClient, http.MethodGet, url, nil, mutate, nil, nil, c.config.HTTPMaxAttempts, c.config.HTTPRetryInterval)
		if err != nil {
			status.Status = "error"
			status.Detail = err.Error()
		} else {
			status.Status = "ok"
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func bearer(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

func basicAuth(username, password string) string {
	if username == "" && password == "" {
		return ""
	}
	return "Basic "
}
