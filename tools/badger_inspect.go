package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"pingr/domain/chat"
)

// Dumps message records from a badger database as a terminal table.
// Intended for poking at a stopped server's data directory.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	color.Cyan.Printf("Scanning %s with prefix %q\n\n", *dbPath, *prefix)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Created", "Sender", "Receiver", "Seen", "Lang", "Text"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// Index families carry no record payload
			key := string(item.Key())
			if strings.HasPrefix(key, "ref:") || strings.HasPrefix(key, "unseen:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var m chat.Message
				if err := json.Unmarshal(v, &m); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}

				seen := color.Red.Sprint("unseen")
				if m.Seen {
					seen = color.Green.Sprint("seen")
				}

				text := m.Text
				if text == "" && m.Image != "" {
					text = "[image] " + m.Image
				}

				table.Append([]string{
					m.CreatedAt.Format(time.DateTime),
					short(m.SenderID),
					short(m.ReceiverID),
					seen,
					m.Lang,
					text,
				})
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
	color.Cyan.Printf("\n%d message(s)\n", rows)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
