package preferences

import (
	"context"
	"encoding/json"
	"time"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/logger"
)

// Record namespaces in a Store
const (
	NamespacePrefs     = "prefs"
	NamespaceOverrides = "species"
)

// DefaultOverrideTimeout bounds how long a batch waits for a user's overrides
const DefaultOverrideTimeout = 1500 * time.Millisecond

// Store is an opaque key-value capability holding one JSON record per
// namespace and user id.
type Store interface {
	// Get returns the record and whether one exists
	Get(ctx context.Context, namespace, userID string) ([]byte, bool, error)
	// Put stores the record, replacing any previous value
	Put(ctx context.Context, namespace, userID string, value []byte) error
	Close() error
}

// UserContext is everything the filter pipeline needs to know about a user
type UserContext struct {
	UserID    string
	Matrix    Matrix
	Overrides Overrides
}

// GetLogger returns the package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("preferences")
}

// LoadMatrix reads and sanitizes a user's region matrix. A missing record
// is an empty matrix.
func LoadMatrix(ctx context.Context, store Store, userID string) (Matrix, error) {
	data, ok, err := store.Get(ctx, NamespacePrefs, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Matrix{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		GetLogger().Warn("discarding malformed preference record",
			logger.String("user", userID),
			logger.Error(err))
		return Matrix{}, nil
	}
	return SanitizeMatrix(raw), nil
}

// SaveMatrix stores a user's region matrix
func SaveMatrix(ctx context.Context, store Store, userID string, m Matrix) error {
	data, err := json.Marshal(m.Raw())
	if err != nil {
		return errors.New(err).
			Component("preferences").
			Category(errors.CategoryPreferences).
			Context("operation", "encode-matrix").
			Build()
	}
	return store.Put(ctx, NamespacePrefs, userID, data)
}

// LoadOverrides reads a user's overrides, giving up after timeout. ok is
// false when the store failed or did not answer in time, so the caller can
// fall back to its own default. A missing record is empty overrides.
func LoadOverrides(ctx context.Context, store Store, userID string, timeout time.Duration) (Overrides, bool) {
	if timeout <= 0 {
		timeout = DefaultOverrideTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		data []byte
		ok   bool
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, ok, err := store.Get(ctx, NamespaceOverrides, userID)
		done <- result{data, ok, err}
	}()

	select {
	case <-ctx.Done():
		GetLogger().Warn("override lookup timed out",
			logger.String("user", userID),
			logger.Duration("timeout", timeout))
		return Overrides{}, false
	case res := <-done:
		if res.err != nil {
			GetLogger().Warn("override lookup failed",
				logger.String("user", userID),
				logger.Error(res.err))
			return Overrides{}, false
		}
		if !res.ok {
			return NewOverrides(), true
		}
		o, err := ParseOverrides(res.data)
		if err != nil {
			GetLogger().Warn("discarding malformed override record",
				logger.String("user", userID),
				logger.Error(err))
			return NewOverrides(), true
		}
		return o, true
	}
}

// SaveOverrides stores a user's overrides in record form
func SaveOverrides(ctx context.Context, store Store, userID string, o Overrides) error {
	data, err := json.Marshal(o.Record())
	if err != nil {
		return errors.New(err).
			Component("preferences").
			Category(errors.CategoryPreferences).
			Context("operation", "encode-overrides").
			Build()
	}
	return store.Put(ctx, NamespaceOverrides, userID, data)
}

// LoadUserContext resolves a user's matrix and overrides once for a batch.
// A matrix that cannot be read is treated as empty so the baseline applies,
// and overrides that time out fall back to empty overrides. Only a done ctx
// is returned as an error.
func LoadUserContext(ctx context.Context, store Store, userID string, overrideTimeout time.Duration) (UserContext, error) {
	m, err := LoadMatrix(ctx, store, userID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return UserContext{}, ctxErr
		}
		GetLogger().Warn("preference read failed, using baseline categories",
			logger.String("user", userID),
			logger.Error(err))
		m = Matrix{}
	}
	o, ok := LoadOverrides(ctx, store, userID, overrideTimeout)
	if !ok {
		o = NewOverrides()
	}
	return UserContext{UserID: userID, Matrix: m, Overrides: o}, nil
}
