// Package internal hosts the badger inspect dashboard used during
// development: a single HTML page listing raw records by key prefix next to
// live process stats.
package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key    string
	Kind   string
	Detail string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves /inspect on its own port, independent of the API
// listener, so it can stay bound to localhost in deployments.
func StartDebugServer(db *badger.DB, port int, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{Prefix: prefix, Stats: make(map[string]any)}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), mux)
	}()
}

// DefaultMapper understands the repository key families and renders JSON
// values compactly; anything else is shown raw.
func DefaultMapper(key string, val []byte) InspectRow {
	row := InspectRow{Key: key, Kind: "RAW", Detail: fmt.Sprintf("%d bytes", len(val))}

	switch {
	case strings.HasPrefix(key, "msg:"):
		row.Kind = "MESSAGE"
	case strings.HasPrefix(key, "user:"):
		row.Kind = "USER"
	case strings.HasPrefix(key, "unseen:"):
		row.Kind = "UNSEEN"
		row.Detail = "-"
		return row
	case strings.HasPrefix(key, "ref:"), strings.HasPrefix(key, "uid:"):
		row.Kind = "INDEX"
		row.Detail = string(val)
		return row
	}

	var decoded map[string]any
	if err := json.Unmarshal(val, &decoded); err == nil {
		delete(decoded, "PasswordHash")
		if pretty, err := json.Marshal(decoded); err == nil {
			row.Detail = string(pretty)
		}
	}
	return row
}
