// Package settings provides runtime flags stored in the settings table.
// Values can be seeded from a TOML file that is watched for changes.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
)

// Provider looks settings up in the store on every call, so a change made
// by another process (the operator CLI) is seen by the next request.
type Provider struct {
	Store  store.Store
	Logger *slog.Logger
	Now    func() time.Time
}

func (p *Provider) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now()
}

func (p *Provider) lookup(ctx context.Context, key string) (string, bool) {
	s, err := p.Store.Settings().GetSetting(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.Logger.Warn("setting lookup failed, using default", "key", key, "err", err)
		}
		return "", false
	}
	return s.Value, true
}

// String returns the value of key, or def when unset.
func (p *Provider) String(ctx context.Context, key, def string) string {
	v, ok := p.lookup(ctx, key)
	if !ok {
		return def
	}
	return v
}

// Bool returns key parsed as a boolean ("1", "true", "0", "false", ...),
// or def when unset or unparsable.
func (p *Provider) Bool(ctx context.Context, key string, def bool) bool {
	v, ok := p.lookup(ctx, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.Logger.Warn("setting is not a boolean, using default", "key", key, "value", v)
		return def
	}
	return b
}

// Set stores a value.
func (p *Provider) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("setting key is required")
	}
	return p.Store.Settings().PutSetting(ctx, domain.Setting{Key: key, Value: value, UpdatedAt: p.now()})
}

// All returns every stored setting.
func (p *Provider) All(ctx context.Context) ([]domain.Setting, error) {
	return p.Store.Settings().ListSettings(ctx)
}

// seedFile is the TOML layout:
//
//	[settings]
//	login_otp_enabled = true
//	idme_required = false
//	site_name = "NationalResourceBenefits"
type seedFile struct {
	Settings map[string]any `toml:"settings"`
}

// LoadFile reads a TOML seed file and writes every value in one
// transaction. It returns the keys that were written.
func (p *Provider) LoadFile(ctx context.Context, path string) ([]string, error) {
	var f seedFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to decode settings file: %w", err)
	}

	keys := make([]string, 0, len(f.Settings))
	values := make(map[string]string, len(f.Settings))
	for k, raw := range f.Settings {
		v, err := stringify(raw)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", k, err)
		}
		keys = append(keys, k)
		values[k] = v
	}
	sort.Strings(keys)

	now := p.now()
	err := p.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, k := range keys {
			if err := tx.Settings().PutSetting(ctx, domain.Setting{Key: k, Value: values[k], UpdatedAt: now}); err != nil {
				return fmt.Errorf("failed to store setting %q: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Logger.Info("settings loaded", "path", path, "keys", keys)
	return keys, nil
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unsupported value type %T", v)
}
