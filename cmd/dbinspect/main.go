// Command dbinspect prints the persisted coursetrack state.
//
// Storage location and backend come from the usual configuration sources.
// Arguments after the dbinspect flags are passed to the config loader:
//
//	dbinspect -raw -- -storage-backend sqlite
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/coursetrack/coursetrack/internal/config"
	"github.com/coursetrack/coursetrack/internal/domain"
	"github.com/coursetrack/coursetrack/internal/store"
	"github.com/coursetrack/coursetrack/internal/store/sqlite"
)

func main() {
	fs := flag.NewFlagSet("dbinspect", flag.ExitOnError)
	raw := fs.Bool("raw", false, "Print the stored blob as indented JSON")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs.Args())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	kv, err := openKV(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer kv.Close()

	ctx := context.Background()
	st := store.NewStateStore(kv, nil)

	blob, err := st.Raw(ctx)
	if store.IsNotFound(err) {
		fmt.Println("No saved state.")
		return
	}
	if err != nil {
		log.Fatalf("Failed to read state: %v", err)
	}

	if *raw {
		var out bytes.Buffer
		if err := json.Indent(&out, blob, "", "  "); err != nil {
			log.Fatalf("Stored blob is not valid JSON: %v", err)
		}
		fmt.Println(out.String())
		return
	}

	state, err := domain.DecodeState(blob)
	if err != nil {
		log.Fatalf("Stored blob cannot be decoded: %v", err)
	}
	printSummary(state, len(blob))

	corrupt, err := st.CorruptCopies(ctx)
	if err != nil {
		log.Fatalf("Failed to list corrupt copies: %v", err)
	}
	if len(corrupt) > 0 {
		fmt.Println()
		fmt.Printf("Preserved corrupt blobs: %d\n", len(corrupt))
		for _, k := range corrupt {
			fmt.Printf("  %s\n", k)
		}
	}
}

func openKV(cfg *config.Config) (store.KV, error) {
	if cfg.Storage.Backend == config.BackendSQLite {
		return sqlite.Open(filepath.Join(cfg.Storage.Path, "coursetrack.db"), nil)
	}
	return store.NewReadOnly(filepath.Join(cfg.Storage.Path, "db"), nil)
}

func printSummary(state domain.State, size int) {
	fmt.Println("=== State Inspection ===")
	fmt.Println()
	fmt.Printf("Blob size:        %d bytes\n", size)
	fmt.Printf("Dark mode:        %t\n", state.DarkMode)
	if state.CurrentVideo != nil {
		fmt.Printf("Current video:    %s (%s)\n", state.CurrentVideo.Title, state.CurrentVideo.ID)
	} else {
		fmt.Println("Current video:    none")
	}

	s := state.UserStats
	fmt.Println()
	fmt.Println("Stats:")
	fmt.Printf("  Watch time:       %.0fs (%dh)\n", s.TotalWatchTime, s.WatchedHours())
	fmt.Printf("  Completed videos: %d\n", s.CompletedVideos)
	fmt.Printf("  Streak:           %d (longest %d)\n", s.CurrentStreak, s.LongestStreak)

	fmt.Println()
	fmt.Printf("Playlists: %d\n", len(state.Playlists))
	for _, pl := range state.Playlists {
		fmt.Printf("  %s  %-30s %d videos\n", pl.ID, pl.Name, len(pl.Videos))
	}

	ids := make([]string, 0, len(state.VideoProgress))
	completed := 0
	for id, rec := range state.VideoProgress {
		ids = append(ids, id)
		if rec.Completed {
			completed++
		}
	}
	sort.Strings(ids)

	fmt.Println()
	fmt.Printf("Tracked videos: %d (%d completed)\n", len(ids), completed)
	for i, id := range ids {
		if i == 10 {
			fmt.Printf("  ... and %d more\n", len(ids)-10)
			break
		}
		rec := state.VideoProgress[id]
		fmt.Printf("  %-16s %6.0f / %6.0fs  completed=%t\n", id, rec.Timestamp, rec.Duration, rec.Completed)
	}
}
