package ingest

import (
	"context"
	"testing"

	"originmesh/internal/orchestrator"
)

func TestMediaRouterModuleRegisterAndUnregister(t *testing.T) {
	router := NewMediaRouterModule(nil)
	app := &orchestrator.Application{ID: 1, ComposedName: "#default#live"}

	if router.IsObserving(app.ID) {
		t.Fatal("expected app not observed before registration")
	}

	if err := router.RegisterObserverApp(context.Background(), app); err != nil {
		t.Fatalf("RegisterObserverApp: %v", err)
	}
	if !router.IsObserving(app.ID) {
		t.Fatal("expected app to be observed after registration")
	}
	if len(router.ObservedApplications()) != 1 {
		t.Fatalf("expected 1 observed application, got %d", len(router.ObservedApplications()))
	}

	if err := router.UnregisterObserverApp(context.Background(), app); err != nil {
		t.Fatalf("UnregisterObserverApp: %v", err)
	}
	if router.IsObserving(app.ID) {
		t.Fatal("expected app not observed after unregistration")
	}
}

func TestMediaRouterModuleUnregisterUnknownIsNoop(t *testing.T) {
	router := NewMediaRouterModule(nil)
	app := &orchestrator.Application{ID: 42, ComposedName: "#default#live"}

	if err := router.UnregisterObserverApp(context.Background(), app); err != nil {
		t.Fatalf("expected no error unregistering unknown app, got %v", err)
	}
}

func TestMediaRouterModuleAdvertisesType(t *testing.T) {
	router := NewMediaRouterModule(nil)
	if router.GetModuleType() != orchestrator.ModuleMediaRouter {
		t.Fatalf("expected ModuleMediaRouter, got %v", router.GetModuleType())
	}
}

func TestMediaRouterModuleReregisterIsIdempotent(t *testing.T) {
	router := NewMediaRouterModule(nil)
	app := &orchestrator.Application{ID: 7, ComposedName: "#default#live"}

	if err := router.RegisterObserverApp(context.Background(), app); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := router.RegisterObserverApp(context.Background(), app); err != nil {
		t.Fatalf("second register: %v", err)
	}
	if len(router.ObservedApplications()) != 1 {
		t.Fatalf("expected exactly 1 observed application, got %d", len(router.ObservedApplications()))
	}
}
