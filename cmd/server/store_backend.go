package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"bigharvest.farm/internal/persistence/filestore"
	"bigharvest.farm/internal/persistence/gateway"
	"bigharvest.farm/internal/persistence/sqlitestore"
)

type backendConfig struct {
	Kind      string
	DataDir   string
	SavesDir  string
	StateFile string
	DBPath    string
	DisableDB bool
}

type backend struct {
	Store    gateway.Store
	Index    *sqlitestore.Store
	Describe string
}

func (b *backend) Close() {
	if b.Index != nil {
		_ = b.Index.Close()
	}
}

// openBackend picks the profile store. The sqlite database doubles as the
// action index; with a file store it is opened separately unless disabled.
func openBackend(cfg backendConfig) (*backend, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	dbPath := strings.TrimSpace(cfg.DBPath)
	if kind == "" {
		kind = "file"
		if dbPath != "" {
			kind = "sqlite"
		}
	}
	if dbPath == "" {
		dbPath = filepath.Join(cfg.DataDir, "index", "farm.sqlite")
	}

	switch kind {
	case "sqlite":
		db, err := sqlitestore.Open(dbPath)
		if err != nil {
			return nil, err
		}
		return &backend{Store: db, Index: db, Describe: "sqlite " + dbPath}, nil
	case "file":
		savesDir := strings.TrimSpace(cfg.SavesDir)
		if savesDir == "" {
			savesDir = filepath.Join(cfg.DataDir, "saves")
		}
		var opts []filestore.Option
		desc := "file " + savesDir
		if sf := strings.TrimSpace(cfg.StateFile); sf != "" {
			opts = append(opts, filestore.WithStateFile(sf, gateway.DefaultProfile))
			desc += " (default profile in " + sf + ")"
		}
		b := &backend{Store: filestore.New(savesDir, opts...), Describe: desc}
		if !cfg.DisableDB {
			db, err := sqlitestore.Open(dbPath)
			if err != nil {
				return nil, err
			}
			b.Index = db
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Kind)
	}
}
