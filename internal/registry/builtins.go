package registry

import "context"

// EchoGear implements the canonical built-in echoGear(input) = { echo:
// input.msg }.
//
// It is deliberately permissive about input shape: a map with a "msg" key
// yields that value under "echo"; anything else yields an "echo" of nil
// rather than an error.
func EchoGear(_ context.Context, input any) (any, error) {
	var msg any
	if m, ok := input.(map[string]any); ok {
		msg = m["msg"]
	}
	return map[string]any{"echo": msg}, nil
}

// PathInvalidator is the pluggable collaborator behind the "revalidate"
// outlet. A caller wires a CDN purge, a static site rebuild trigger, or
// a no-op for tests.
type PathInvalidator interface {
	InvalidatePath(ctx context.Context, path string) error
}

// Revalidate returns a local function that invalidates the path named by
// input["path"] via invalidator. A nil invalidator makes the outlet a
// no-op, which keeps NewSeeded usable without wiring a real CDN.
func Revalidate(invalidator PathInvalidator) Fn {
	return func(ctx context.Context, input any) (any, error) {
		m, _ := input.(map[string]any)
		path, _ := m["path"].(string)
		if invalidator == nil || path == "" {
			return map[string]any{"revalidated": false}, nil
		}
		if err := invalidator.InvalidatePath(ctx, path); err != nil {
			return nil, err
		}
		return map[string]any{"revalidated": true, "path": path}, nil
	}
}

// BlobPutter is the pluggable collaborator behind the "uploadBlob"
// outlet. A caller wires object storage, or a no-op for tests.
type BlobPutter interface {
	PutBlob(ctx context.Context, key string, data []byte) (url string, err error)
}

// UploadBlob returns a local function that stores input["data"] (treated
// as raw bytes of its string form) under input["key"] via putter.
func UploadBlob(putter BlobPutter) Fn {
	return func(ctx context.Context, input any) (any, error) {
		m, _ := input.(map[string]any)
		key, _ := m["key"].(string)
		data, _ := m["data"].(string)
		if putter == nil || key == "" {
			return map[string]any{"uploaded": false}, nil
		}
		url, err := putter.PutBlob(ctx, key, []byte(data))
		if err != nil {
			return nil, err
		}
		return map[string]any{"uploaded": true, "url": url}, nil
	}
}
