package main

import (
	"log"

	"github.com/BrandonDHaskell/Janus/internal/config"
	"github.com/BrandonDHaskell/Janus/internal/janus/inventory"
)

// newInventory picks the inventory source. The manifest is returned
// separately so main can watch it; it is nil when none is configured.
//
// Without a manifest the provider always fails. The access check keeps
// working from the stored registry, but sweeps and toggles that need the
// inventory are refused, so no record is ever aged out for lack of a source.
func newInventory(cfg config.Config, logger *log.Logger) (inventory.Provider, *inventory.FileProvider) {
	if cfg.InventoryPath == "" {
		logger.Printf("no inventory manifest configured (JANUS_INVENTORY_PATH); sweeps and toggles will fail until one is set")
		return inventory.Unconfigured{}, nil
	}
	fp := inventory.NewFileProvider(cfg.InventoryPath, logger)
	return fp, fp
}
