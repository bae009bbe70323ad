package tablescandal

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
)

// TableSet is the set of tables a server can query, by name.
// It holds connection URLs rather than open handles; every scan opens its own handle.
type TableSet struct {
	conns map[string]ConnURL
	mu    *sync.RWMutex
}

func NewTableSet() *TableSet {
	return &TableSet{make(map[string]ConnURL), new(sync.RWMutex)}
}

// Add registers a table under name. A table already registered under that name is replaced.
func (ts *TableSet) Add(name string, connURL ConnURL) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.conns[name] = connURL
}

func (ts *TableSet) Get(name string) (ConnURL, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	connURL, ok := ts.conns[name]
	return connURL, ok
}

// Names returns the table names, sorted
func (ts *TableSet) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var names []string
	for name := range ts.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a new handle on the named table. The caller must Close it.
func (ts *TableSet) Open(logger *logpkg.Logger, name string) (TableHandle, errorsx.Error) {
	connURL, ok := ts.Get(name)
	if !ok {
		return nil, errorsx.Wrap(errorsx.ObjectNotFound, "table", name)
	}

	return Open(logger, connURL.String())
}

// TableNameFromConnString derives a short table name: the file name without its extension for file-backed stores,
// or the "table" query parameter for databases.
func TableNameFromConnString(connURL ConnURL) string {
	path := connURL.ConnectionPath
	if connURL.Type == StoreTypePostgresql {
		var rawQuery string
		path, rawQuery, _ = strings.Cut(path, "?")
		query, err := url.ParseQuery(rawQuery)
		if err == nil && query.Get("table") != "" {
			return query.Get("table")
		}
	}

	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AddFromDir adds every parquet file found directly inside dirPath, named after the file.
func (ts *TableSet) AddFromDir(fs gofs.Fs, dirPath string) errorsx.Error {
	dirEntries, err := fs.ReadDir(dirPath)
	if err != nil {
		return errorsx.Wrap(err, "dirPath", dirPath)
	}

	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.EqualFold(filepath.Ext(dirEntry.Name()), ".parquet") {
			continue
		}

		connURL := ConnURL{
			Type:           StoreTypeParquet,
			ConnectionPath: filepath.Join(dirPath, dirEntry.Name()),
		}
		ts.Add(TableNameFromConnString(connURL), connURL)
	}

	return nil
}
