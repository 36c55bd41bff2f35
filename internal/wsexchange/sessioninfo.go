package wsexchange

import (
	"fmt"
	"net/url"
	"sync"
)

// userDataKind tags which scalar type a userDataValue is currently holding.
type userDataKind int

const (
	userDataBool userDataKind = iota
	userDataUint64
	userDataString
)

// userDataValue is a tagged scalar, the Go analogue of the original
// implementation's std::variant<bool,uint64_t,ov::String>. Only one field
// is meaningful at a time, selected by kind.
type userDataValue struct {
	kind   userDataKind
	b      bool
	u      uint64
	s      string
}

// SessionInfoID is the integer key a WebSocketSession uses to address a
// WebSocketSessionInfo in its client map.
type SessionInfoID uint64

// WebSocketSessionInfo is the per-client attachment a resolved interceptor
// hangs off a WebSocketSession after upgrade: naming, an opaque user-data
// map of tagged scalars, and a single type-erased Extra handle for
// anything an interceptor needs to stash that does not fit the known
// scalar cases, per spec.md Design Notes.
type WebSocketSessionInfo struct {
	ID           SessionInfoID
	VHostAppName string
	HostName     string
	AppName      string
	StreamName   string
	URI          *url.URL

	mu       sync.RWMutex
	userData map[string]userDataValue
	extra    interface{}
}

// NewWebSocketSessionInfo constructs a WebSocketSessionInfo with an empty
// user-data map.
func NewWebSocketSessionInfo(id SessionInfoID, vhostAppName, hostName, appName, streamName string, uri *url.URL) *WebSocketSessionInfo {
	return &WebSocketSessionInfo{
		ID:           id,
		VHostAppName: vhostAppName,
		HostName:     hostName,
		AppName:      appName,
		StreamName:   streamName,
		URI:          uri,
		userData:     make(map[string]userDataValue),
	}
}

// SetBool stores a boolean under key.
func (i *WebSocketSessionInfo) SetBool(key string, value bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.userData[key] = userDataValue{kind: userDataBool, b: value}
}

// SetUint64 stores a uint64 under key.
func (i *WebSocketSessionInfo) SetUint64(key string, value uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.userData[key] = userDataValue{kind: userDataUint64, u: value}
}

// SetString stores a string under key.
func (i *WebSocketSessionInfo) SetString(key string, value string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.userData[key] = userDataValue{kind: userDataString, s: value}
}

// GetBool returns the boolean stored under key, or false and ok=false if
// absent or stored under a different tag.
func (i *WebSocketSessionInfo) GetBool(key string) (bool, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.userData[key]
	if !ok || v.kind != userDataBool {
		return false, false
	}
	return v.b, true
}

// GetUint64 returns the uint64 stored under key, or 0 and ok=false if
// absent or stored under a different tag.
func (i *WebSocketSessionInfo) GetUint64(key string) (uint64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.userData[key]
	if !ok || v.kind != userDataUint64 {
		return 0, false
	}
	return v.u, true
}

// GetString returns the string stored under key, or "" and ok=false if
// absent or stored under a different tag.
func (i *WebSocketSessionInfo) GetString(key string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.userData[key]
	if !ok || v.kind != userDataString {
		return "", false
	}
	return v.s, true
}

// DeleteUserData removes key from the user-data map.
func (i *WebSocketSessionInfo) DeleteUserData(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.userData, key)
}

// SetExtra stores an interceptor-defined, type-erased payload. Interceptors
// that need strong typing should wrap an owning handle they can assert back
// to their own type via GetExtra.
func (i *WebSocketSessionInfo) SetExtra(value interface{}) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.extra = value
}

// GetExtra returns the previously stored Extra payload, or nil if none was
// set.
func (i *WebSocketSessionInfo) GetExtra() interface{} {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.extra
}

// String implements fmt.Stringer for logging.
func (i *WebSocketSessionInfo) String() string {
	return fmt.Sprintf("WebSocketSessionInfo{id=%d, vhostApp=%s, stream=%s}", i.ID, i.VHostAppName, i.StreamName)
}
