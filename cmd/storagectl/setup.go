package main

import (
	"github.com/cuemby/storagecore/pkg/domainstore"
	"github.com/cuemby/storagecore/pkg/txlog"
)

// openComponents opens the domain stores and the transaction log under
// dataDir with the given serializer policy. Callers are responsible for
// closing the returned store.
func openComponents(dataDir string, maxEntrySize int, deflate, dedup bool) (*domainstore.BoltStore, *txlog.LogManager, error) {
	store, err := domainstore.Open(dataDir)
	if err != nil {
		return nil, nil, err
	}

	policy := txlog.StreamPolicy{
		MaxEntrySize: maxEntrySize,
		Deflate:      deflate,
		Dedup:        dedup,
	}
	logManager := txlog.NewLogManager(dataDir, policy)
	return store, logManager, nil
}
