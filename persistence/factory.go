package persistence

import (
	"github.com/wechange-eg/conference-hub/config"
)

// NewPersister picks the backend from the configuration: "postgres" and
// "sqlite" go through gorm, "buntdb" through the file store. A missing
// configuration yields a nil persister, not an error.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "postgres", "sqlite":
		return NewGormPersister(cfg)
	case "buntdb":
		return NewBuntPersister(cfg)
	}
	return nil, nil
}
