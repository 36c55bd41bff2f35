package ingest

import (
	"context"
	"log/slog"
	"sync"

	"originmesh/internal/orchestrator"
)

// MediaRouterModule is a minimal in-process MediaRouter: it tracks which
// Applications are currently registered as route observers, keyed by
// application id, the way Gateway tracks room membership keyed by channel
// id. It does no actual media routing of its own; it exists so the
// Registry's distinguished MediaRouter reference is backed by a real
// module rather than only documented.
type MediaRouterModule struct {
	logger *slog.Logger

	mu        sync.RWMutex
	observers map[orchestrator.ApplicationID]*orchestrator.Application
}

// NewMediaRouterModule constructs an empty MediaRouterModule.
func NewMediaRouterModule(logger *slog.Logger) *MediaRouterModule {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaRouterModule{
		logger:    logger,
		observers: make(map[orchestrator.ApplicationID]*orchestrator.Application),
	}
}

func (m *MediaRouterModule) GetModuleType() orchestrator.ModuleType {
	return orchestrator.ModuleMediaRouter
}

// OnCreateApplication does no provisioning; route observation is
// registered separately via RegisterObserverApp once module notification
// has succeeded.
func (m *MediaRouterModule) OnCreateApplication(ctx context.Context, app *orchestrator.Application) bool {
	return true
}

func (m *MediaRouterModule) OnDeleteApplication(ctx context.Context, app *orchestrator.Application) bool {
	return true
}

// RegisterObserverApp adds app to the observer set. Re-registering the
// same application id is a no-op.
func (m *MediaRouterModule) RegisterObserverApp(ctx context.Context, app *orchestrator.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[app.ID] = app
	m.logger.Info("media router observing application", "app", app.ComposedName, "id", app.ID)
	return nil
}

// UnregisterObserverApp removes app from the observer set. Unregistering
// an application id that was never registered is a no-op.
func (m *MediaRouterModule) UnregisterObserverApp(ctx context.Context, app *orchestrator.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, app.ID)
	m.logger.Info("media router dropped application", "app", app.ComposedName, "id", app.ID)
	return nil
}

// IsObserving reports whether id is currently registered as a route
// observer.
func (m *MediaRouterModule) IsObserving(id orchestrator.ApplicationID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.observers[id]
	return ok
}

// ObservedApplications returns a snapshot of every currently observed
// Application, in no particular order.
func (m *MediaRouterModule) ObservedApplications() []*orchestrator.Application {
	m.mu.RLock()
	defer m.mu.RUnlock()
	apps := make([]*orchestrator.Application, 0, len(m.observers))
	for _, app := range m.observers {
		apps = append(apps, app)
	}
	return apps
}
