package orchestrator

import (
	"fmt"
	"strings"
)

// vhostAppSeparator is the delimiter used in a composed vhost/app name.
// A raw vhost or app name containing a literal separator has it escaped to
// an underscore before composition, matching the original implementation's
// name-mangling so composed names always split into exactly three tokens.
const vhostAppSeparator = "#"

// ComposeVHostAppName builds the `#<vhost>#<app>` composed name used to key
// Applications globally across all virtual hosts.
func ComposeVHostAppName(vhostName, appName string) string {
	vhost := strings.ReplaceAll(vhostName, vhostAppSeparator, "_")
	app := strings.ReplaceAll(appName, vhostAppSeparator, "_")
	return fmt.Sprintf("%s%s%s%s", vhostAppSeparator, vhost, vhostAppSeparator, app)
}

// ParseVHostAppName splits a composed name back into its vhost and app
// parts. It is valid iff splitting on the separator yields exactly three
// tokens with the first one empty (the leading separator before the vhost
// name), matching the original implementation's parser.
func ParseVHostAppName(composed string) (vhostName, appName string, ok bool) {
	tokens := strings.Split(composed, vhostAppSeparator)
	if len(tokens) != 3 || tokens[0] != "" {
		return "", "", false
	}
	return tokens[1], tokens[2], true
}

// ResolveVHostNameFromDomain finds the first VirtualHost among hosts whose
// compiled Domain regexes match the given request host, preserving the
// order hosts appear in the slice. Matching stops at the first hit: two
// virtual hosts claiming overlapping domain patterns are resolved by
// configuration order, not specificity.
func ResolveVHostNameFromDomain(hosts []*VirtualHost, requestHost string) (string, bool) {
	for _, host := range hosts {
		for _, domain := range host.Domains {
			if domain.Regex == nil {
				continue
			}
			if domain.Regex.MatchString(requestHost) {
				return host.Name, true
			}
		}
	}
	return "", false
}

// ResolveProviderType maps an ingest URL scheme to the closed set of
// Provider types the Orchestrator understands. The match is
// case-insensitive. Resolves spec.md Open Question (b): the original
// implementation's GetProviderForUrl null-checked the raw scheme string
// rather than the parsed URL, silently accepting malformed URLs with an
// empty scheme as "no provider" instead of surfacing a parse error. Here
// the upstream URLs are parsed and scheme-checked in pull.go's
// urlListForOrigin; this function is given the Origin's configured Scheme
// field and reports false for an empty or unknown scheme.
func ResolveProviderType(scheme string) (ProviderType, bool) {
	switch strings.ToLower(scheme) {
	case "rtmp":
		return ProviderRtmp, true
	case "rtsp":
		return ProviderRtsp, true
	case "rtspc":
		return ProviderRtspPull, true
	case "ovt":
		return ProviderOvt, true
	default:
		return 0, false
	}
}
