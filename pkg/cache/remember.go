package cache

import (
	"context"
	"reflect"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/logging"
)

// Loader produces a value on a cache miss.
type Loader[T any] func(ctx context.Context) (T, error)

// Remember returns the value cached for params in namespace, or calls load,
// caches its result for ttl and returns it. Concurrent misses for the same
// params share one load call. Errors come only from load; they are returned
// unchanged and nothing is cached.
func Remember[T any](ctx context.Context, m *Manager, namespace string, params any, ttl time.Duration, load Loader[T]) (T, error) {
	if v, ok := Get[T](ctx, m, namespace, params); ok {
		return v, nil
	}

	hash, err := HashParams(params)
	if err != nil {
		return load(ctx)
	}

	// Callers asking for different result types never share a load.
	flightKey := namespace + ":" + hash + ":" + reflect.TypeOf((*T)(nil)).Elem().String()

	res, err, shared := m.flights.Do(flightKey, func() (interface{}, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.Set(ctx, namespace, params, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		m.logger.Debug().Str(logging.FieldNamespace, namespace).Msg("Shared in-flight load")
	}
	// A nil interface result does not satisfy the assertion; the zero T is
	// the right answer for it.
	v, _ := res.(T)
	return v, nil
}
