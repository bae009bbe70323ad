package tablescandal

import (
	"sort"
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/tablescan/tablescan"
)

// OpenFunc opens a table handle for a parsed connection URL
type OpenFunc func(logger *logpkg.Logger, connURL ConnURL) (TableHandle, errorsx.Error)

var (
	openersMu sync.RWMutex
	openers   = make(map[StoreType]OpenFunc)
)

// RegisterOpener makes a store type available to Open. Store packages register themselves in init,
// so import them (for side effects if need be) to enable their connection strings.
func RegisterOpener(storeType StoreType, openFunc OpenFunc) {
	openersMu.Lock()
	defer openersMu.Unlock()

	if openFunc == nil {
		panic("tablescandal: RegisterOpener called with nil OpenFunc for " + string(storeType))
	}
	if _, dup := openers[storeType]; dup {
		panic("tablescandal: RegisterOpener called twice for " + string(storeType))
	}
	openers[storeType] = openFunc
}

// RegisteredStoreTypes lists the store types Open can handle
func RegisteredStoreTypes() []StoreType {
	openersMu.RLock()
	defer openersMu.RUnlock()

	var storeTypes []StoreType
	for storeType := range openers {
		storeTypes = append(storeTypes, storeType)
	}
	sort.Slice(storeTypes, func(i, j int) bool {
		return storeTypes[i] < storeTypes[j]
	})
	return storeTypes
}

// Open opens a read-only handle on the table named by connString, e.g. "parquet:///data/vitals.parquet".
// The caller must Close the handle.
func Open(logger *logpkg.Logger, connString string) (TableHandle, errorsx.Error) {
	connURL, err := ParseConnString(connString)
	if err != nil {
		return nil, tablescan.NewStorageUnavailableError(err, "connString", connString)
	}

	openersMu.RLock()
	openFunc, ok := openers[connURL.Type]
	openersMu.RUnlock()

	if !ok {
		return nil, tablescan.NewStorageUnavailableError(
			errorsx.Errorf("unrecognised store type: %q", connURL.Type),
			"connString", connString,
		)
	}

	return openFunc(logger, connURL)
}
