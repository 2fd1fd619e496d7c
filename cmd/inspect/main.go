// Command inspect dumps the raw keyspace of a chat database for
// debugging: room metadata, message rows with their expiry, and the
// expiry index. The database must not be open in a running server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"m5chat/pkg/models"
)

func main() {
	var (
		dbPath  = flag.String("db", "", "pebble DB path (required)")
		room    = flag.String("room", "", "only show keys for this room")
		showRaw = flag.Bool("raw", false, "print raw JSON values")
	)
	flag.Parse()
	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	db, err := pebble.Open(*dbPath, &pebble.Options{ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	iter, err := db.NewIter(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterator: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = iter.Close() }()

	now := time.Now().UTC().UnixNano()
	var rooms, msgs, live, expIdx int
	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		if *room != "" && !strings.HasPrefix(key, "room:"+*room+":") {
			if !strings.HasPrefix(key, "exp:") {
				continue
			}
		}
		switch {
		case strings.HasSuffix(key, ":meta"):
			rooms++
			fmt.Printf("ROOM  %s\n", key)
		case strings.Contains(key, ":msg:"):
			msgs++
			var m models.StoredMessage
			if err := json.Unmarshal(iter.Value(), &m); err != nil {
				fmt.Printf("MSG   %s  <undecodable: %v>\n", key, err)
				continue
			}
			state := "expired"
			if now < m.ExpiresAt {
				state = "live"
				live++
			}
			line := fmt.Sprintf("MSG   %s  user=%s type=%s %s", key, m.Username, m.Type, state)
			if u := m.AttachmentURL(); u != "" {
				line += " url=" + u
			}
			fmt.Println(line)
		case strings.HasPrefix(key, "exp:"):
			expIdx++
			fmt.Printf("EXP   %s\n", key)
		default:
			fmt.Printf("???   %s\n", key)
		}
		if *showRaw {
			fmt.Printf("      %s\n", iter.Value())
		}
	}
	fmt.Printf("\nrooms=%d messages=%d (live=%d) expiry-index=%d\n", rooms, msgs, live, expIdx)
}
