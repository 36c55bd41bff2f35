package orchestrator

import (
	"regexp"
)

// HostConfig is the declarative, passive description of a VirtualHost as it
// arrives from configuration. ApplyOriginMap diffs the running VirtualHost
// tree against a slice of these on every reconciliation pass.
type HostConfig struct {
	Name    string
	Domains []string
	Origins []OriginConfig
}

// OriginConfig is the declarative description of an Origin rule.
type OriginConfig struct {
	Location string
	Scheme   string
	URLs     []string
}

// AppConfig is the declarative description of an Application, supplied
// either as part of host configuration or via an explicit CreateApplication
// call.
type AppConfig struct {
	Name string
}

// VirtualHost is the runtime representation of a configured host: its
// resolved Domain and Origin children, and the Applications created under
// its namespace.
type VirtualHost struct {
	Name    string
	State   ItemState
	Domains []*Domain
	Origins []*Origin
	Apps    map[ApplicationID]*Application
}

// Domain is a compiled hostname-matching rule nested under a VirtualHost.
type Domain struct {
	Name    string
	State   ItemState
	Regex   *regexp.Regexp
	Streams map[string]*Stream
}

// Origin is a path-prefix rule mapping requests to an ordered list of
// upstream URLs under a scheme.
type Origin struct {
	Location string
	Scheme   string
	URLs     []string
	Config   OriginConfig
	State    ItemState
	Streams  map[string]*Stream
}

// ApplicationID is a strictly monotonic, process-lifetime-unique identifier.
type ApplicationID uint64

// Application is a runtime container for streams within a VirtualHost's
// namespace. ComposedName follows the `#<vhost>#<app>` convention described
// in naming.go.
type Application struct {
	ID           ApplicationID
	ComposedName string
	VHostName    string
	Config       AppConfig
}

// Stream is a running ingest pulled by a Provider module from an upstream
// URL, registered into exactly one Origin's and one Domain's stream maps.
type Stream struct {
	App          *Application
	Provider     Provider
	ProviderName string
	Handle       ProviderStreamHandle
	FullName     string
	IsValid      bool
}

// ProviderStreamHandle is the opaque, provider-assigned handle for a pulled
// stream. Providers mint it from whatever identifies the stream on their
// side; the Orchestrator only needs ID() to key the Origin/Domain stream
// maps and Name() for logging.
type ProviderStreamHandle interface {
	ID() string
	Name() string
}

// Result mirrors the small set of outcome codes the Orchestrator surfaces to
// callers, per spec.md section 7.
type Result int

const (
	Succeeded Result = iota
	Failed
	NotExists
	Exists
)

func (r Result) String() string {
	switch r {
	case Succeeded:
		return "Succeeded"
	case NotExists:
		return "NotExists"
	case Exists:
		return "Exists"
	default:
		return "Failed"
	}
}

// moduleRecord pairs a registered module with its capability tag, matching
// the teacher's constructor-plus-tag-field pattern used throughout
// internal/ingest for adapters.
type moduleRecord struct {
	kind   ModuleType
	module Module
}
