package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"originmesh/internal/observability/metrics"
)

// Orchestrator holds the running VirtualHost tree and the registry of
// modules notified of its changes. Mutation always follows the lock order
// registry-then-vhosts: any code path that needs both must acquire the
// Registry's internal lock (via a Registry method call) before taking
// vhostMu, never the reverse, matching the original implementation's
// module_list_mutex-before-virtual_host_map_mutex discipline.
type Orchestrator struct {
	registry *Registry
	pull     *PullCoordinator
	logger   *slog.Logger

	vhostMu sync.RWMutex
	vhosts  map[string]*VirtualHost

	idMu   sync.Mutex
	nextID ApplicationID

	prom *metrics.OrchestratorMetrics
}

// New constructs an Orchestrator with an empty VirtualHost tree.
func New(registry *Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry: registry,
		pull:     NewPullCoordinator(),
		logger:   logger,
		vhosts:   make(map[string]*VirtualHost),
	}
}

// Registry returns the Orchestrator's module registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// SetMetrics attaches Prometheus instrumentation to the Orchestrator and its
// PullCoordinator. It is optional: an Orchestrator with no metrics attached
// reconciles and pulls exactly as it would otherwise, just unobserved.
func (o *Orchestrator) SetMetrics(m *metrics.OrchestratorMetrics) {
	o.prom = m
	o.pull.prom = m
}

// refreshGauges recomputes the active-application and active-stream gauges
// from the running VirtualHost tree. Called after every reconciliation pass
// so the exported gauges never drift from what ApplyOriginMap just settled.
func (o *Orchestrator) refreshGauges() {
	if o.prom == nil {
		return
	}
	o.vhostMu.RLock()
	defer o.vhostMu.RUnlock()

	applications := 0
	streams := 0
	for _, vhost := range o.vhosts {
		applications += len(vhost.Apps)
		for _, domain := range vhost.Domains {
			for _, stream := range domain.Streams {
				if stream.IsValid {
					streams++
				}
			}
		}
	}
	o.prom.SetApplicationsActive(applications)
	o.prom.SetStreamsActive(streams)
}

// VirtualHost returns the named VirtualHost, if it has been applied.
func (o *Orchestrator) VirtualHost(name string) (*VirtualHost, bool) {
	o.vhostMu.RLock()
	defer o.vhostMu.RUnlock()
	vhost, ok := o.vhosts[name]
	return vhost, ok
}

// ApplyOriginMap reconciles the running VirtualHost tree against configs,
// per spec.md section 4.3. Every VirtualHost currently running but absent
// from configs is deleted; every VirtualHost present in configs is
// created if new or diffed and patched in place if already running.
//
// Domains and Origins are diffed by key (name, location): items present in
// the new config are marked NotChanged or Changed in place, items no
// longer present are marked Delete and dropped, and unseen keys become
// New, mirroring ProcessDomainList/ProcessOriginList in the original
// implementation.
func (o *Orchestrator) ApplyOriginMap(ctx context.Context, configs []HostConfig) error {
	configByName := make(map[string]HostConfig, len(configs))
	for _, cfg := range configs {
		configByName[cfg.Name] = cfg
	}

	o.vhostMu.Lock()
	existing := make([]*VirtualHost, 0, len(o.vhosts))
	for _, vhost := range o.vhosts {
		existing = append(existing, vhost)
	}
	o.vhostMu.Unlock()

	for _, vhost := range existing {
		if _, stillConfigured := configByName[vhost.Name]; !stillConfigured {
			if err := o.deleteVirtualHost(ctx, vhost); err != nil {
				return fmt.Errorf("delete vhost %q: %w", vhost.Name, err)
			}
		}
	}

	for _, cfg := range configs {
		if err := o.ApplyForVirtualHost(ctx, cfg); err != nil {
			return fmt.Errorf("apply vhost %q: %w", cfg.Name, err)
		}
	}

	if o.prom != nil {
		o.prom.ObserveReconcilePass()
	}
	o.refreshGauges()
	o.checkNoUnknownStates()

	return nil
}

// checkNoUnknownStates logs an error for any VirtualHost, Domain, or Origin
// left at the zero-valued ItemUnknown state after a reconciliation pass.
// Every code path in processDomainList/processOriginList/ApplyForVirtualHost
// assigns a concrete state to everything it touches, so ItemUnknown
// surviving a pass means a vhost/domain/origin was added to the tree
// without going through reconciliation — an invariant violation per
// DESIGN.md, Open Question (c), not a state this orchestrator ever
// legitimately produces.
func (o *Orchestrator) checkNoUnknownStates() {
	o.vhostMu.RLock()
	defer o.vhostMu.RUnlock()

	for _, vhost := range o.vhosts {
		if vhost.State == ItemUnknown {
			o.logger.Error("invariant violation: vhost left in ItemUnknown state", "vhost", vhost.Name)
		}
		for _, domain := range vhost.Domains {
			if domain.State == ItemUnknown {
				o.logger.Error("invariant violation: domain left in ItemUnknown state", "vhost", vhost.Name, "domain", domain.Name)
			}
		}
		for _, origin := range vhost.Origins {
			if origin.State == ItemUnknown {
				o.logger.Error("invariant violation: origin left in ItemUnknown state", "vhost", vhost.Name, "origin", origin.Location)
			}
		}
	}
}

// ApplyForVirtualHost reconciles a single VirtualHost's Domain and Origin
// children against cfg, creating the VirtualHost if it does not yet exist.
func (o *Orchestrator) ApplyForVirtualHost(ctx context.Context, cfg HostConfig) error {
	o.vhostMu.Lock()
	vhost, exists := o.vhosts[cfg.Name]
	if !exists {
		vhost = &VirtualHost{
			Name: cfg.Name,
			Apps: make(map[ApplicationID]*Application),
		}
		o.vhosts[cfg.Name] = vhost
	}
	o.vhostMu.Unlock()

	if err := o.processDomainList(vhost, cfg.Domains); err != nil {
		return fmt.Errorf("process domains: %w", err)
	}
	if err := o.processOriginList(vhost, cfg.Origins); err != nil {
		return fmt.Errorf("process origins: %w", err)
	}

	vhost.State = ItemApplied
	return nil
}

// processDomainList diffs vhost.Domains against names, compiling a
// hostname-matching regex for any new domain. Domains absent from names
// are removed; domains already present are left untouched beyond having
// their state refreshed to NotChanged.
func (o *Orchestrator) processDomainList(vhost *VirtualHost, names []string) error {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	kept := make([]*Domain, 0, len(vhost.Domains))
	for _, domain := range vhost.Domains {
		if wanted[domain.Name] {
			domain.State = ItemNotChanged
			kept = append(kept, domain)
			delete(wanted, domain.Name)
			continue
		}
		domain.State = ItemDelete
	}

	for name := range wanted {
		regex, err := compileDomainRegex(name)
		if err != nil {
			return fmt.Errorf("domain %q: %w", name, err)
		}
		kept = append(kept, &Domain{
			Name:    name,
			State:   ItemNew,
			Regex:   regex,
			Streams: make(map[string]*Stream),
		})
	}

	vhost.Domains = kept
	return nil
}

// processOriginList diffs vhost.Origins against configs by Location,
// treating any change to Scheme or URLs under an existing Location as an
// update in place rather than a remove-then-add, so any Streams already
// keyed under that Origin survive the reconciliation.
func (o *Orchestrator) processOriginList(vhost *VirtualHost, configs []OriginConfig) error {
	configByLocation := make(map[string]OriginConfig, len(configs))
	for _, cfg := range configs {
		configByLocation[cfg.Location] = cfg
	}

	kept := make([]*Origin, 0, len(vhost.Origins))
	for _, origin := range vhost.Origins {
		cfg, stillConfigured := configByLocation[origin.Location]
		if !stillConfigured {
			origin.State = ItemDelete
			continue
		}
		if cfg.Scheme != origin.Scheme || !stringSlicesEqual(cfg.URLs, origin.URLs) {
			origin.State = ItemChanged
		} else {
			origin.State = ItemNotChanged
		}
		origin.Scheme = cfg.Scheme
		origin.URLs = cfg.URLs
		origin.Config = cfg
		kept = append(kept, origin)
		delete(configByLocation, origin.Location)
	}

	for _, c := range configs {
		cfg, pending := configByLocation[c.Location]
		if !pending {
			continue
		}
		delete(configByLocation, c.Location)
		kept = append(kept, &Origin{
			Location: cfg.Location,
			Scheme:   cfg.Scheme,
			URLs:     cfg.URLs,
			Config:   cfg,
			State:    ItemNew,
			Streams:  make(map[string]*Stream),
		})
	}

	vhost.Origins = kept
	return nil
}

// deleteVirtualHost tears down every Application still running under
// vhost before removing vhost from the running tree.
func (o *Orchestrator) deleteVirtualHost(ctx context.Context, vhost *VirtualHost) error {
	o.vhostMu.RLock()
	apps := make([]*Application, 0, len(vhost.Apps))
	for _, app := range vhost.Apps {
		apps = append(apps, app)
	}
	o.vhostMu.RUnlock()

	for _, app := range apps {
		if result := o.DeleteApplicationInternal(ctx, vhost, app); result != Succeeded && result != NotExists {
			o.logger.Warn("vhost teardown: application delete failed",
				"vhost", vhost.Name, "app", app.ComposedName, "result", result.String())
		}
	}

	o.vhostMu.Lock()
	delete(o.vhosts, vhost.Name)
	o.vhostMu.Unlock()

	o.logger.Info("virtual host deleted", "vhost", vhost.Name)
	return nil
}

// PullCoordinator exposes the Orchestrator's shared singleflight-backed
// pull coordinator so callers can request a stream pull without reaching
// into the internal field.
func (o *Orchestrator) PullCoordinator() *PullCoordinator {
	return o.pull
}

// compileDomainRegex turns a configured domain pattern into an anchored
// regex. A literal domain name is escaped so `.` and other regex
// metacharacters in a plain hostname cannot accidentally widen the match.
// A pattern explicitly using `*` as a subdomain wildcard is rewritten into
// the equivalent regex, matching the common configuration convention the
// original implementation supports via regex domain strings.
func compileDomainRegex(pattern string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	return regexp.Compile("^" + escaped + "$")
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
