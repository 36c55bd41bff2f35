package orchestrator

import (
	"context"
)

// CreateApplicationInternal inserts app into vhost's Apps map before
// notifying any module, then notifies every registered module in
// registration order via OnCreateApplication. If any module refuses the
// application, every module already notified is rolled back with
// OnDeleteApplication and app is removed from vhost's Apps map, matching
// the original implementation's all-or-nothing CreateApplicationInternal.
// Once every module has accepted the application, the distinguished
// MediaRouter, if any, registers it as a route observer.
func (o *Orchestrator) CreateApplicationInternal(ctx context.Context, vhost *VirtualHost, app *Application) Result {
	o.vhostMu.Lock()
	if _, exists := vhost.Apps[app.ID]; exists {
		o.vhostMu.Unlock()
		return Exists
	}
	vhost.Apps[app.ID] = app
	o.vhostMu.Unlock()

	modules := o.registry.All()
	notified := make([]Module, 0, len(modules))
	for _, m := range modules {
		if m.OnCreateApplication(ctx, app) {
			notified = append(notified, m)
			continue
		}

		o.logger.Warn("module refused application create, rolling back",
			"app", app.ComposedName, "moduleType", m.GetModuleType().String())

		for i := len(notified) - 1; i >= 0; i-- {
			notified[i].OnDeleteApplication(ctx, app)
		}

		o.vhostMu.Lock()
		delete(vhost.Apps, app.ID)
		o.vhostMu.Unlock()
		return Failed
	}

	if router := o.registry.MediaRouter(); router != nil {
		if err := router.RegisterObserverApp(ctx, app); err != nil {
			o.logger.Warn("media router refused observer registration", "app", app.ComposedName, "error", err)
		}
	}

	o.logger.Info("application created", "app", app.ComposedName)
	return Succeeded
}

// DeleteApplicationInternal removes app from vhost's Apps map, unregisters
// it from the distinguished MediaRouter if any, and then notifies every
// registered module of the deletion regardless of any individual module's
// outcome. This is deliberately best-effort-complete rather than
// all-or-nothing: unlike creation, a failing module during teardown must
// never leave other modules holding stale application state, which
// mirrors NotifyModulesForDeleteEvent in the original implementation.
func (o *Orchestrator) DeleteApplicationInternal(ctx context.Context, vhost *VirtualHost, app *Application) Result {
	o.vhostMu.Lock()
	if _, exists := vhost.Apps[app.ID]; !exists {
		o.vhostMu.Unlock()
		return NotExists
	}
	delete(vhost.Apps, app.ID)
	o.vhostMu.Unlock()

	if router := o.registry.MediaRouter(); router != nil {
		if err := router.UnregisterObserverApp(ctx, app); err != nil {
			o.logger.Warn("media router failed observer unregistration", "app", app.ComposedName, "error", err)
		}
	}

	anyFailed := false
	for _, m := range o.registry.All() {
		if !m.OnDeleteApplication(ctx, app) {
			anyFailed = true
			o.logger.Warn("module failed application delete, continuing",
				"app", app.ComposedName, "moduleType", m.GetModuleType().String())
		}
	}

	if anyFailed {
		o.logger.Warn("application deleted with module failures", "app", app.ComposedName)
		return Failed
	}
	o.logger.Info("application deleted", "app", app.ComposedName)
	return Succeeded
}

// CreateApplication is the public entry point for creating an Application
// under vhostName with the given config. It mints a fresh ApplicationID,
// composes the application's global name, and delegates to
// CreateApplicationInternal.
func (o *Orchestrator) CreateApplication(ctx context.Context, vhostName string, cfg AppConfig) (*Application, Result) {
	o.vhostMu.Lock()
	vhost, ok := o.vhosts[vhostName]
	o.vhostMu.Unlock()
	if !ok {
		return nil, NotExists
	}

	app := &Application{
		ID:           o.nextApplicationID(),
		ComposedName: ComposeVHostAppName(vhostName, cfg.Name),
		VHostName:    vhostName,
		Config:       cfg,
	}

	result := o.CreateApplicationInternal(ctx, vhost, app)
	if result != Succeeded {
		return nil, result
	}
	return app, Succeeded
}

// DeleteApplication is the public entry point for deleting an Application
// previously created under vhostName.
func (o *Orchestrator) DeleteApplication(ctx context.Context, vhostName string, appID ApplicationID) Result {
	o.vhostMu.Lock()
	vhost, ok := o.vhosts[vhostName]
	if !ok {
		o.vhostMu.Unlock()
		return NotExists
	}
	app, ok := vhost.Apps[appID]
	o.vhostMu.Unlock()
	if !ok {
		return NotExists
	}

	return o.DeleteApplicationInternal(ctx, vhost, app)
}

// nextApplicationID returns a strictly monotonic, process-lifetime-unique
// ApplicationID. IDs are never reused, even across deletions, so a stale
// handle held by a module after a delete can never collide with a
// subsequently created application.
func (o *Orchestrator) nextApplicationID() ApplicationID {
	o.idMu.Lock()
	defer o.idMu.Unlock()
	o.nextID++
	return o.nextID
}
