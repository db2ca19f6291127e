package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bigharvest.farm/internal/persistence/filestore"
	"bigharvest.farm/internal/persistence/gateway"
	"bigharvest.farm/internal/persistence/sqlitestore"
	"bigharvest.farm/internal/sim/catalogs"
	"bigharvest.farm/internal/sim/farm"
	"bigharvest.farm/internal/sim/tuning"
)

type options struct {
	dataDir   string
	configDir string
	store     string
	dbPath    string
	savesDir  string

	journalLimit int
	actionsLimit int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "farmadmin",
		Short:         "Inspect Big Harvest profiles, journals and catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.dataDir, "data", "d", "./data", "runtime data directory")
	root.PersistentFlags().StringVarP(&o.configDir, "configs", "c", "./configs", "config directory (embedded defaults when missing)")
	root.PersistentFlags().StringVar(&o.store, "store", "", "profile store: file or sqlite (default: sqlite when BHF_DB is set)")
	root.PersistentFlags().StringVar(&o.dbPath, "db", os.Getenv("BHF_DB"), "sqlite database path")
	root.PersistentFlags().StringVar(&o.savesDir, "saves", os.Getenv("BHF_SAVES_DIR"), "file store directory")

	root.AddCommand(
		newProfilesCmd(o),
		newShowCmd(o),
		newJournalCmd(o),
		newActionsCmd(o),
		newResetsCmd(o),
		newCatalogCmd(o),
	)
	return root
}

func (o *options) db() string {
	if o.dbPath != "" {
		return o.dbPath
	}
	return filepath.Join(o.dataDir, "index", "farm.sqlite")
}

func (o *options) catalogs() (*catalogs.Catalogs, tuning.Tuning, error) {
	var (
		cats *catalogs.Catalogs
		err  error
	)
	if _, statErr := os.Stat(filepath.Join(o.configDir, "crops.json")); statErr == nil {
		cats, err = catalogs.LoadDir(o.configDir)
	} else {
		cats, err = catalogs.Default()
	}
	if err != nil {
		return nil, tuning.Tuning{}, err
	}
	tp := filepath.Join(o.configDir, "tuning.yaml")
	var tune tuning.Tuning
	if _, statErr := os.Stat(tp); statErr == nil {
		tune, err = tuning.Load(tp)
	} else {
		tune, err = tuning.Default()
	}
	return cats, tune, err
}

// gateway opens the configured store read-mostly. The returned close func
// releases the sqlite handle when one was opened.
func (o *options) gateway() (*gateway.Gateway, func(), error) {
	cats, tune, err := o.catalogs()
	if err != nil {
		return nil, nil, err
	}
	kind := o.store
	if kind == "" {
		kind = "file"
		if o.dbPath != "" {
			kind = "sqlite"
		}
	}
	var (
		store   gateway.Store
		closeFn = func() {}
	)
	switch kind {
	case "sqlite":
		db, err := sqlitestore.Open(o.db())
		if err != nil {
			return nil, nil, err
		}
		store = db
		closeFn = func() { _ = db.Close() }
	case "file":
		dir := o.savesDir
		if dir == "" {
			dir = filepath.Join(o.dataDir, "saves")
		}
		store = filestore.New(dir)
	default:
		return nil, nil, fmt.Errorf("unsupported store: %s", kind)
	}
	return gateway.New(store, farm.NewShaper(cats, tune), "", nil), closeFn, nil
}
