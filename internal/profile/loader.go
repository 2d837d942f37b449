package profile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Load reads a profile document (json, yaml or toml, chosen by extension).
func Load(path string) (*Profile, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

// Watch loads the profile at path into a new Context and keeps it current:
// every change on disk is re-validated and installed with Replace. A change that
// fails to load or validate is logged and the previous snapshot stays active.
func Watch(path string, logger *zap.Logger) (*Context, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v, err := read(path)
	if err != nil {
		return nil, err
	}

	initial, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	pc := NewContext(initial)

	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := fromViper(v)
		if err != nil {
			logger.Warn("profile change rejected, keeping previous snapshot",
				zap.String("path", e.Name),
				zap.Error(err),
			)
			return
		}

		if err := pc.Replace(next); err != nil {
			logger.Warn("profile change rejected, keeping previous snapshot",
				zap.String("path", e.Name),
				zap.Error(err),
			)
			return
		}

		logger.Info("profile reloaded",
			zap.String("path", e.Name),
			zap.Int("version", pc.Version()),
			zap.Int("role_tags", len(next.RoleTags)),
		)
	})
	v.WatchConfig()

	return pc, nil
}

// Save validates p and writes it to path in the format implied by the extension.
// A Watch on the same path picks the change up.
func Save(path string, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	v := viper.New()
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing profile %q: %w", path, err)
	}
	return nil
}

func read(path string) (*viper.Viper, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("profile path is not configured")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", path, err)
	}

	return v, nil
}

func fromViper(v *viper.Viper) (*Profile, error) {
	return FromMap(v.AllSettings())
}
