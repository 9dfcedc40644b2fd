// Chronostore CLI
// Records and inspects historical observations in a local store
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/pkg/histdb"
	"github.com/nainya/chronostore/pkg/temporal"
)

var (
	dbPath      = flag.String("db", "chronostore.db", "Store directory path")
	variantName = flag.String("variant", "range", "Temporal variant: range or instances")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	pretty      = flag.Bool("pretty", true, "Pretty-print log output")
	insensitive = flag.Bool("i", false, "Case-insensitive index/search")
	entityID    = flag.Uint64("id", 0, "Entity id (put, get)")
	value       = flag.String("value", "", "Data value (put, search)")
	timestamp   = flag.Uint64("ts", 0, "Observation time, epoch seconds (put; 0 = now)")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: chronostore [flags] <command>

Commands:
  put      Record one observation (-id, -value, -ts)
  get      Print every value observed for an entity (-id)
  index    Rebuild the value index (-i for case-insensitive)
  search   Look up entities by value (-value, -i)
  count    Print entity and entry counts

Flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
	}

	log := logger.New(logger.Config{Level: *logLevel, Pretty: *pretty})

	variant := temporal.VariantRange
	switch *variantName {
	case "range":
	case "instances":
		variant = temporal.VariantInstances
	default:
		log.Fatal().Str("variant", *variantName).Msg("unknown temporal variant")
	}

	db, err := histdb.Open(*dbPath, variant, histdb.WithLogger(logger.ForStore(log, *dbPath)))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	cs := histdb.CaseSensitive
	if *insensitive {
		cs = histdb.CaseInsensitive
	}

	switch flag.Arg(0) {
	case "put":
		ts := uint32(*timestamp)
		if ts == 0 {
			ts = uint32(time.Now().Unix())
		}
		if err := db.Put(*entityID, []byte(*value), ts); err != nil {
			log.Fatal().Err(err).Msg("put failed")
		}

	case "get":
		result, err := db.Get(*entityID)
		if err != nil {
			log.Fatal().Err(err).Msg("get failed")
		}
		for val, summary := range result {
			fmt.Printf("%s\t%s\n", val, formatSummary(summary))
		}

	case "index":
		if err := db.MakeIndex(cs); err != nil {
			log.Fatal().Err(err).Msg("index rebuild failed")
		}

	case "search":
		ids, err := db.Search([]byte(*value), cs)
		if err != nil {
			log.Fatal().Err(err).Msg("search failed")
		}
		for _, id := range ids {
			fmt.Println(id)
		}

	case "count":
		entities, entries, err := db.Counts()
		if err != nil {
			log.Fatal().Err(err).Msg("count failed")
		}
		fmt.Printf("entities=%d entries=%d\n", entities, entries)

	default:
		usage()
	}
}

func formatSummary(s temporal.Summary) string {
	if inst, ok := s.(*temporal.Instances); ok {
		out := ""
		for i, ts := range inst.Times() {
			if i > 0 {
				out += ","
			}
			out += strconv.FormatUint(uint64(ts), 10)
		}
		return out
	}
	return fmt.Sprintf("first=%d last=%d", s.First(), s.Last())
}
