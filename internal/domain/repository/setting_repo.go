package repository

import "context"

// SettingRepository persists key/value module settings.
type SettingRepository interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// CreateIfAbsent stores the value only when the key does not exist yet.
	// It reports whether this call created the key.
	CreateIfAbsent(ctx context.Context, key, value string) (bool, error)
}
