package orchestrator

import "context"

// ModuleType is the closed set of module capability kinds the Orchestrator
// fans out to.
type ModuleType int

const (
	ModuleProvider ModuleType = iota
	ModulePublisher
	ModuleMediaRouter
	ModuleTranscoder
)

func (t ModuleType) String() string {
	switch t {
	case ModuleProvider:
		return "Provider"
	case ModulePublisher:
		return "Publisher"
	case ModuleMediaRouter:
		return "MediaRouter"
	case ModuleTranscoder:
		return "Transcoder"
	default:
		return "Unknown"
	}
}

// Module is the capability every registered module exposes, regardless of
// its specific kind.
type Module interface {
	GetModuleType() ModuleType
	OnCreateApplication(ctx context.Context, app *Application) bool
	OnDeleteApplication(ctx context.Context, app *Application) bool
}

// ProviderType is the closed set of upstream ingest schemes a Provider
// module can serve, mirroring the scheme->provider mapping in naming.go.
type ProviderType int

const (
	ProviderRtmp ProviderType = iota
	ProviderRtsp
	ProviderRtspPull
	ProviderOvt
)

// Provider is a module capable of pulling a stream from an upstream URL on
// demand, and of stopping one it previously pulled.
type Provider interface {
	Module
	GetProviderType() ProviderType
	PullStream(ctx context.Context, app *Application, streamName string, urls []string, offset int64) (ProviderStreamHandle, error)
	StopStream(ctx context.Context, app *Application, handle ProviderStreamHandle) bool
	CheckOriginAvailability(ctx context.Context, urls []string) bool
}

// MediaRouter is the module capability that observes Application lifecycle
// for the purposes of media routing. At most one MediaRouter module is held
// as a distinguished reference by the Registry.
type MediaRouter interface {
	Module
	RegisterObserverApp(ctx context.Context, app *Application) error
	UnregisterObserverApp(ctx context.Context, app *Application) error
}
