package arxgorm

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// DialectorOpener is a function that returns a gorm.Dialector for a DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	providers  = make(map[string]DialectorOpener)
)

// Register adds a database driver to the registry. The built-in drivers
// (sqlite, postgres, mysql) register themselves on import.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = opener
}

// Open connects to the named database and returns a repository.
// Unique-constraint violations are translated so the repository can map
// them to the conflict errors callers match on.
func Open(name, dsn string, config *gorm.Config) (*Repository, error) {
	registryMu.RLock()
	opener, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("arxgorm: unknown database driver %q", name)
	}

	if config == nil {
		config = &gorm.Config{}
	}
	config.TranslateError = true

	db, err := gorm.Open(opener(dsn), config)
	if err != nil {
		return nil, err
	}
	return NewRepository(db), nil
}
