package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/annel0/blockdisguise/internal/config"
	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/engine"
	"github.com/annel0/blockdisguise/internal/logging"
	"github.com/annel0/blockdisguise/internal/storage"
)

// noChunk значение -x/-z по умолчанию: команда работает со всем миром
const noChunk = math.MinInt32

func main() {
	var (
		configPath = flag.String("config", "", "Path to overlay config (default: $OVERLAY_CONFIG)")
		command    = flag.String("cmd", "inspect", "Command: defs, inspect, delete, clone, compact")
		worldName  = flag.String("world", "", "World name")
		target     = flag.String("to", "", "Destination world for clone")
		chunkX     = flag.Int("x", noChunk, "Chunk X for inspect")
		chunkZ     = flag.Int("z", noChunk, "Chunk Z for inspect")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	logging.GetLoggerManager().SetAllLevels(logging.WARN, logging.LevelFromDebug(cfg.Overlay.Debug))

	if *command == "defs" {
		if err := showDefinitions(os.Stdout, cfg.Overlay.DefinitionsPath); err != nil {
			log.Fatalf("❌ Defs failed: %v", err)
		}
		return
	}

	if *worldName == "" {
		log.Fatalf("❌ -world is required for %s", *command)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open overlay database: %v", err)
	}
	defer store.Close()

	switch *command {
	case "inspect":
		if *chunkX == noChunk || *chunkZ == noChunk {
			err = listChunks(os.Stdout, store, *worldName)
		} else {
			err = inspectChunk(os.Stdout, store, storage.ChunkKey{World: *worldName, X: *chunkX, Z: *chunkZ})
		}
		if err != nil {
			log.Fatalf("❌ Inspect failed: %v", err)
		}

	case "delete":
		n, err := store.DeleteWorld(*worldName)
		if err != nil {
			log.Fatalf("❌ Delete failed: %v", err)
		}
		fmt.Printf("🗑  Deleted %d chunk records of %s\n", n, *worldName)

	case "clone":
		if *target == "" {
			log.Fatalf("❌ -to is required for clone")
		}
		n, err := store.CloneWorld(*worldName, *target)
		if err != nil {
			log.Fatalf("❌ Clone failed: %v", err)
		}
		fmt.Printf("📋 Cloned %d chunk records %s -> %s\n", n, *worldName, *target)

	case "compact":
		if err := compactWorld(os.Stdout, store, *worldName); err != nil {
			log.Fatalf("❌ Compact failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: defs, inspect, delete, clone, compact")
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	backend, err := engine.OpenBackend(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(backend, storage.Options{
		Compression:     cfg.Storage.Compression,
		RecomputeWorlds: cfg.Overlay.RecomputeWorlds,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// showDefinitions выводит загруженные определения с базовыми состояниями слотов
func showDefinitions(w io.Writer, dir string) error {
	defs := definition.NewStore()
	n, err := defs.Load(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "📦 %d overlay definitions in %s\n", n, dir)
	for _, id := range defs.IDs() {
		def, _ := defs.Get(id)
		fmt.Fprintf(w, "%s (%s)\n", id, def.Source)
		for _, slot := range []definition.Slot{definition.Primary, definition.Secondary} {
			for _, kind := range []definition.Kind{definition.Actual, definition.Disguised} {
				if state, ok := def.BaseState(kind, slot); ok {
					fmt.Fprintf(w, "  %s-block%s: %s\n", kind.Prefix(), slot.Suffix(), state)
				}
			}
		}
		if flags := optionFlags(def.Options); len(flags) > 0 {
			fmt.Fprintf(w, "  options: %s\n", strings.Join(flags, ", "))
		}
	}
	return nil
}

func optionFlags(o definition.Options) []string {
	var flags []string
	if o.Unbreakable {
		flags = append(flags, "unbreakable")
	}
	if o.PistonBreakable {
		flags = append(flags, "piston-breakable")
	}
	if o.CancelPistonPush {
		flags = append(flags, "cancel-piston-push")
	}
	if o.CancelPistonPull {
		flags = append(flags, "cancel-piston-pull")
	}
	return flags
}

// listChunks выводит все чанки мира с числом записей
func listChunks(w io.Writer, store *storage.Store, worldName string) error {
	keys, err := store.ChunkKeys(worldName)
	if err != nil {
		return err
	}

	total := 0
	for _, key := range keys {
		rec, err := store.Get(key)
		if err != nil {
			fmt.Fprintf(w, "%s: ⚠️  %v\n", key, err)
			continue
		}
		total += rec.Len()
		fmt.Fprintf(w, "%s: %d overlays\n", key, rec.Len())
	}
	fmt.Fprintf(w, "\n📊 Total: %d overlays in %d chunks\n", total, len(keys))
	return nil
}

// inspectChunk выводит записи одного чанка по секциям
func inspectChunk(w io.Writer, store *storage.Store, key storage.ChunkKey) error {
	rec, err := store.Get(key)
	if err != nil {
		return err
	}
	if rec.IsEmpty() {
		fmt.Fprintf(w, "%s: no overlays\n", key)
		return nil
	}

	if rec.HasReloadID {
		fmt.Fprintf(w, "%s (reload id %v)\n", key, rec.ReloadID)
	} else {
		fmt.Fprintf(w, "%s\n", key)
	}
	for _, y := range rec.SubChunkYs() {
		fmt.Fprintf(w, "  section %d\n", y)
		for _, pos := range rec.Positions(y) {
			entry, _ := rec.Entry(y, pos)
			loc := rec.Location(y, pos)
			disguised := entry.Disguised
			if disguised == "" {
				disguised = "-"
			}
			fmt.Fprintf(w, "    %s: %s (%s) disguised=%s\n", loc.Pos, entry.ID, entry.Slot, disguised)
		}
	}
	return nil
}

// compactWorld удаляет пустые секции и записи во всём мире
func compactWorld(w io.Writer, store *storage.Store, worldName string) error {
	keys, err := store.ChunkKeys(worldName)
	if err != nil {
		return err
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Z < keys[j].Z
	})

	sections, removed := 0, 0
	for _, key := range keys {
		rec, err := store.Get(key)
		if err != nil {
			fmt.Fprintf(w, "%s: ⚠️  %v\n", key, err)
			continue
		}
		n, deleted, err := store.Compact(rec)
		if err != nil {
			return err
		}
		sections += n
		if deleted {
			removed++
			continue
		}
		if n > 0 {
			if err := store.Save(rec); err != nil {
				return err
			}
		}
	}
	fmt.Fprintf(w, "🧹 Compacted %s: %d empty sections, %d empty records removed\n", worldName, sections, removed)
	return nil
}
