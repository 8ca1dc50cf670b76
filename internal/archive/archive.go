// Package archive keeps raw LLM responses for later inspection.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"
)

// Archiver stores one raw response produced for a user.
type Archiver interface {
	// Archive stores raw and returns the URI it was written to.
	Archive(ctx context.Context, userID string, generatedAt time.Time, raw string) (string, error)
}

// ObjectName is the object path a response generated at t is stored under.
func ObjectName(userID string, t time.Time) string {
	return path.Join("insights", userID, t.UTC().Format(time.RFC3339)+".txt")
}

// ParseURI splits gs://bucket/object into its parts.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Memory is an in-process Archiver used in tests and local runs.
type Memory struct {
	mu      sync.Mutex
	objects map[string]string
}

// NewMemory creates an empty Memory archive.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]string)}
}

// Archive implements Archiver.
func (m *Memory) Archive(ctx context.Context, userID string, generatedAt time.Time, raw string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uri := "mem://" + ObjectName(userID, generatedAt)
	m.objects[uri] = raw
	return uri, nil
}

// Objects returns a snapshot of everything archived so far.
func (m *Memory) Objects() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.objects))
	for k, v := range m.objects {
		out[k] = v
	}
	return out
}
