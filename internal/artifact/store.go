// Package artifact stores synthesized audio and hands back dereferenceable
// URLs for playback. Byte-producing synthesis backends upload here; backends
// that already return a URL bypass the store entirely.
package artifact

import "context"

// Store persists an audio artifact and returns a locator a client can fetch.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
