package orchestrator

import (
	"context"
	"sync"
	"testing"
)

type fakeModule struct {
	kind          ModuleType
	refuseCreate  bool
	created       []ApplicationID
	deleted       []ApplicationID
	mu            sync.Mutex
}

func (f *fakeModule) GetModuleType() ModuleType { return f.kind }

func (f *fakeModule) OnCreateApplication(ctx context.Context, app *Application) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuseCreate {
		return false
	}
	f.created = append(f.created, app.ID)
	return true
}

func (f *fakeModule) OnDeleteApplication(ctx context.Context, app *Application) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, app.ID)
	return true
}

func newTestOrchestrator() *Orchestrator {
	return New(NewRegistry(nil), nil)
}

func TestApplyForVirtualHostCreatesDomainsAndOrigins(t *testing.T) {
	o := newTestOrchestrator()
	cfg := HostConfig{
		Name:    "default",
		Domains: []string{"example.com", "*.example.com"},
		Origins: []OriginConfig{
			{Location: "/live/", Scheme: "rtmp", URLs: []string{"rtmp://origin1:1935/app"}},
		},
	}

	if err := o.ApplyForVirtualHost(context.Background(), cfg); err != nil {
		t.Fatalf("ApplyForVirtualHost: %v", err)
	}

	vhost, ok := o.VirtualHost("default")
	if !ok {
		t.Fatal("expected vhost to exist")
	}
	if len(vhost.Domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(vhost.Domains))
	}
	for _, d := range vhost.Domains {
		if d.State != ItemNew {
			t.Errorf("domain %q: expected New, got %s", d.Name, d.State)
		}
	}
	if len(vhost.Origins) != 1 || vhost.Origins[0].State != ItemNew {
		t.Fatalf("expected 1 new origin, got %+v", vhost.Origins)
	}
	if vhost.State != ItemApplied {
		t.Errorf("expected vhost state Applied, got %s", vhost.State)
	}
}

func TestApplyForVirtualHostReapplyMarksNotChangedAndChanged(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	first := HostConfig{
		Name:    "default",
		Domains: []string{"example.com"},
		Origins: []OriginConfig{
			{Location: "/live/", Scheme: "rtmp", URLs: []string{"rtmp://origin1:1935/app"}},
			{Location: "/vod/", Scheme: "ovt", URLs: []string{"ovt://origin2:9000/app"}},
		},
	}
	if err := o.ApplyForVirtualHost(ctx, first); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	second := HostConfig{
		Name:    "default",
		Domains: []string{"example.com"},
		Origins: []OriginConfig{
			{Location: "/live/", Scheme: "rtmp", URLs: []string{"rtmp://origin1-new:1935/app"}},
		},
	}
	if err := o.ApplyForVirtualHost(ctx, second); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	vhost, _ := o.VirtualHost("default")
	if len(vhost.Domains) != 1 || vhost.Domains[0].State != ItemNotChanged {
		t.Fatalf("expected domain NotChanged, got %+v", vhost.Domains)
	}
	if len(vhost.Origins) != 1 {
		t.Fatalf("expected /vod/ origin dropped, got %+v", vhost.Origins)
	}
	if vhost.Origins[0].State != ItemChanged {
		t.Errorf("expected origin Changed, got %s", vhost.Origins[0].State)
	}
	if vhost.Origins[0].URLs[0] != "rtmp://origin1-new:1935/app" {
		t.Errorf("expected updated URL, got %v", vhost.Origins[0].URLs)
	}
}

func TestApplyOriginMapDeletesMissingVirtualHosts(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	if err := o.ApplyOriginMap(ctx, []HostConfig{{Name: "a"}, {Name: "b"}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := o.VirtualHost("a"); !ok {
		t.Fatal("expected vhost a")
	}
	if _, ok := o.VirtualHost("b"); !ok {
		t.Fatal("expected vhost b")
	}

	if err := o.ApplyOriginMap(ctx, []HostConfig{{Name: "a"}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := o.VirtualHost("b"); ok {
		t.Error("expected vhost b to be removed")
	}
	if _, ok := o.VirtualHost("a"); !ok {
		t.Error("expected vhost a to remain")
	}
}

func TestCreateApplicationNotifiesModulesInOrder(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	if err := o.ApplyForVirtualHost(ctx, HostConfig{Name: "default"}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	m1 := &fakeModule{kind: ModulePublisher}
	m2 := &fakeModule{kind: ModulePublisher}
	if err := o.Registry().Register(m1); err != nil {
		t.Fatalf("register m1: %v", err)
	}
	if err := o.Registry().Register(m2); err != nil {
		t.Fatalf("register m2: %v", err)
	}

	app, result := o.CreateApplication(ctx, "default", AppConfig{Name: "stream"})
	if result != Succeeded {
		t.Fatalf("expected Succeeded, got %s", result)
	}
	if len(m1.created) != 1 || m1.created[0] != app.ID {
		t.Errorf("m1 not notified: %+v", m1.created)
	}
	if len(m2.created) != 1 || m2.created[0] != app.ID {
		t.Errorf("m2 not notified: %+v", m2.created)
	}
}

func TestCreateApplicationRollsBackOnRefusal(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	if err := o.ApplyForVirtualHost(ctx, HostConfig{Name: "default"}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	accepting := &fakeModule{kind: ModulePublisher}
	refusing := &fakeModule{kind: ModulePublisher, refuseCreate: true}
	if err := o.Registry().Register(accepting); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := o.Registry().Register(refusing); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, result := o.CreateApplication(ctx, "default", AppConfig{Name: "stream"})
	if result != Failed {
		t.Fatalf("expected Failed, got %s", result)
	}
	if len(accepting.created) != 1 {
		t.Fatalf("expected accepting module notified once, got %d", len(accepting.created))
	}
	if len(accepting.deleted) != 1 {
		t.Errorf("expected rollback delete on accepting module, got %d", len(accepting.deleted))
	}

	vhost, _ := o.VirtualHost("default")
	if len(vhost.Apps) != 0 {
		t.Errorf("expected application removed from vhost after rollback, got %d", len(vhost.Apps))
	}
}

func TestDeleteApplicationIsBestEffort(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	if err := o.ApplyForVirtualHost(ctx, HostConfig{Name: "default"}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	m1 := &fakeModule{kind: ModulePublisher}
	m2 := &fakeModule{kind: ModuleMediaRouter}
	if err := o.Registry().Register(m1); err != nil {
		t.Fatalf("register m1: %v", err)
	}
	if err := o.Registry().Register(m2); err != nil {
		t.Fatalf("register m2: %v", err)
	}

	app, result := o.CreateApplication(ctx, "default", AppConfig{Name: "stream"})
	if result != Succeeded {
		t.Fatalf("create: %s", result)
	}

	delResult := o.DeleteApplication(ctx, "default", app.ID)
	if delResult != Succeeded {
		t.Fatalf("expected Succeeded, got %s", delResult)
	}
	if len(m1.deleted) != 1 || len(m2.deleted) != 1 {
		t.Errorf("expected both modules notified of delete: m1=%d m2=%d", len(m1.deleted), len(m2.deleted))
	}
}

func TestResolveVHostNameFromDomainPreservesOrder(t *testing.T) {
	narrow, err := compileDomainRegex("a.example.com")
	if err != nil {
		t.Fatal(err)
	}
	wide, err := compileDomainRegex("*.example.com")
	if err != nil {
		t.Fatal(err)
	}

	first := &VirtualHost{Name: "wide-first", Domains: []*Domain{{Name: "*.example.com", Regex: wide}}}
	second := &VirtualHost{Name: "narrow-second", Domains: []*Domain{{Name: "a.example.com", Regex: narrow}}}

	name, ok := ResolveVHostNameFromDomain([]*VirtualHost{first, second}, "a.example.com")
	if !ok || name != "wide-first" {
		t.Errorf("expected first configured match to win, got %q ok=%v", name, ok)
	}
}

func TestParseVHostAppNameRoundTrip(t *testing.T) {
	composed := ComposeVHostAppName("default", "live#stream")
	vhost, app, ok := ParseVHostAppName(composed)
	if !ok {
		t.Fatalf("expected valid parse of %q", composed)
	}
	if vhost != "default" {
		t.Errorf("expected vhost 'default', got %q", vhost)
	}
	if app != "live_stream" {
		t.Errorf("expected escaped app name, got %q", app)
	}
}

func TestParseVHostAppNameRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"no-hash", "#onlyone", "#a#b#c", "a#b"} {
		if _, _, ok := ParseVHostAppName(bad); ok {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestResolveProviderType(t *testing.T) {
	cases := map[string]ProviderType{
		"rtmp":  ProviderRtmp,
		"RTMP":  ProviderRtmp,
		"rtsp":  ProviderRtsp,
		"rtspc": ProviderRtspPull,
		"ovt":   ProviderOvt,
	}
	for scheme, want := range cases {
		got, ok := ResolveProviderType(scheme)
		if !ok || got != want {
			t.Errorf("scheme %q: got %v ok=%v, want %v", scheme, got, ok, want)
		}
	}
	if _, ok := ResolveProviderType("http"); ok {
		t.Error("expected http scheme to have no provider")
	}
}

func TestRegistryUnregisterSymmetric(t *testing.T) {
	r := NewRegistry(nil)
	router := &fakeRouterModule{}
	if err := r.Register(router); err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.MediaRouter() == nil {
		t.Fatal("expected distinguished media router set")
	}

	if err := r.Unregister(router); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if r.MediaRouter() != nil {
		t.Error("expected distinguished media router cleared")
	}
	if len(r.ForType(ModuleMediaRouter)) != 0 {
		t.Error("expected per-type bucket cleared alongside list")
	}
	if len(r.All()) != 0 {
		t.Error("expected list cleared")
	}
}

func TestRegistryRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry(nil)
	m := &fakeModule{kind: ModuleProvider}
	if err := r.Register(m); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(m); err != ErrAlreadyRegistered {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

type fakeRouterModule struct {
	fakeModule
}

func (f *fakeRouterModule) GetModuleType() ModuleType { return ModuleMediaRouter }

func (f *fakeRouterModule) RegisterObserverApp(ctx context.Context, app *Application) error {
	return nil
}

func (f *fakeRouterModule) UnregisterObserverApp(ctx context.Context, app *Application) error {
	return nil
}

type trackingRouterModule struct {
	fakeModule
	mu           sync.Mutex
	registered   []ApplicationID
	unregistered []ApplicationID
}

func (f *trackingRouterModule) GetModuleType() ModuleType { return ModuleMediaRouter }

func (f *trackingRouterModule) RegisterObserverApp(ctx context.Context, app *Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, app.ID)
	return nil
}

func (f *trackingRouterModule) UnregisterObserverApp(ctx context.Context, app *Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregistered = append(f.unregistered, app.ID)
	return nil
}

func TestCreateApplicationRegistersMediaRouterObserver(t *testing.T) {
	o := newTestOrchestrator()
	router := &trackingRouterModule{}
	if err := o.Registry().Register(router); err != nil {
		t.Fatalf("register router: %v", err)
	}
	if err := o.ApplyForVirtualHost(context.Background(), HostConfig{Name: "default"}); err != nil {
		t.Fatalf("ApplyForVirtualHost: %v", err)
	}

	app, result := o.CreateApplication(context.Background(), "default", AppConfig{Name: "live"})
	if result != Succeeded {
		t.Fatalf("expected Succeeded, got %v", result)
	}
	if len(router.registered) != 1 || router.registered[0] != app.ID {
		t.Fatalf("expected media router to observe app %d, got %v", app.ID, router.registered)
	}

	if result := o.DeleteApplication(context.Background(), "default", app.ID); result != Succeeded {
		t.Fatalf("expected Succeeded, got %v", result)
	}
	if len(router.unregistered) != 1 || router.unregistered[0] != app.ID {
		t.Fatalf("expected media router to drop app %d, got %v", app.ID, router.unregistered)
	}
}

func TestCreateApplicationRollbackSkipsMediaRouterRegistration(t *testing.T) {
	o := newTestOrchestrator()
	router := &trackingRouterModule{}
	refusing := &fakeModule{kind: ModuleProvider, refuseCreate: true}
	if err := o.Registry().Register(router); err != nil {
		t.Fatalf("register router: %v", err)
	}
	if err := o.Registry().Register(refusing); err != nil {
		t.Fatalf("register refusing module: %v", err)
	}
	if err := o.ApplyForVirtualHost(context.Background(), HostConfig{Name: "default"}); err != nil {
		t.Fatalf("ApplyForVirtualHost: %v", err)
	}

	if _, result := o.CreateApplication(context.Background(), "default", AppConfig{Name: "live"}); result != Failed {
		t.Fatalf("expected Failed, got %v", result)
	}
	if len(router.registered) != 0 {
		t.Fatalf("expected no observer registration on rollback, got %v", router.registered)
	}
}
