package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillsearch/quill/internal/index"
	"github.com/quillsearch/quill/internal/postform"
	"github.com/quillsearch/quill/internal/query/parser"
	"github.com/quillsearch/quill/internal/schema"
	"github.com/quillsearch/quill/pkg/config"
	"github.com/quillsearch/quill/pkg/logger"
	"github.com/quillsearch/quill/pkg/metrics"
)

const usage = `usage: quill [-config file] <command> [args]

commands:
  index <file.jsonl>   index documents, one JSON object per line with an "id" key
  search <query>       run a query and print ranked results
  delete <id>          delete a document by ID
  merge                force a full segment merge
  stats                print index statistics
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	limit := flag.Int("limit", 0, "maximum results for search")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	ix, err := index.Open(cfg, documentSchema(), m)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer ix.Close()

	var cache *index.Cache
	if cfg.Cache.Enabled {
		cache, err = index.NewCache(ctx, cfg.Cache, m)
		if err != nil {
			slog.Warn("query cache unavailable, continuing without it", "error", err)
		} else {
			defer cache.Close()
		}
	}

	switch flag.Arg(0) {
	case "index":
		err = runIndex(ctx, ix, flag.Arg(1))
	case "search":
		err = runSearch(ctx, ix, cache, flag.Arg(1), *limit)
	case "delete":
		err = ix.DeleteByID(ctx, flag.Arg(1))
	case "merge":
		err = ix.Merge(ctx)
	case "stats":
		err = runStats(ix)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

// documentSchema is the built-in document shape: a stored ID, positional
// title and body for phrase queries, and a frequency-only author field.
func documentSchema() *schema.Schema {
	s := schema.New().
		MustAddField(schema.Field{Name: "id", Format: postform.Frequency, Stored: true}).
		MustAddField(schema.Field{Name: "title", Format: postform.Positions, Stored: true}).
		MustAddField(schema.Field{Name: "body", Format: postform.Positions}).
		MustAddField(schema.Field{Name: "author", Format: postform.Frequency, Stored: true})
	if err := s.SetDefaultField("body"); err != nil {
		panic(err)
	}
	return s
}

func runIndex(ctx context.Context, ix *index.Index, path string) error {
	if path == "" {
		return fmt.Errorf("index: missing input file")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := ix.Writer()
	start := time.Now()
	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var fields map[string]string
		if err := json.Unmarshal(line, &fields); err != nil {
			slog.Warn("skipping malformed line", "line", count+1, "error", err)
			continue
		}
		id := fields["id"]
		if err := w.AddDocument(ctx, index.Document{ID: id, Fields: fields}); err != nil {
			w.Cancel()
			return err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		w.Cancel()
		return err
	}
	if err := w.Commit(ctx); err != nil {
		return err
	}
	slog.Info("indexing complete", "docs", count, "elapsed", time.Since(start))
	return nil
}

func runSearch(ctx context.Context, ix *index.Index, cache *index.Cache, text string, limit int) error {
	if text == "" {
		return fmt.Errorf("search: missing query")
	}
	q, err := parser.New(ix.Schema()).Parse(text)
	if err != nil {
		slog.Warn("query did not parse, returning no results", "error", err)
	}
	res, err := ix.Searcher(cache).Search(ctx, q, limit)
	if err != nil {
		return err
	}
	fmt.Printf("%d matched in %v\n", res.Matched, res.Elapsed)
	for i, h := range res.Hits {
		id := h.Fields["id"]
		title := h.Fields["title"]
		fmt.Printf("%2d. %.4f  %s  %s\n", i+1, h.Score, id, title)
	}
	return nil
}

func runStats(ix *index.Index) error {
	fmt.Printf("documents: %d\n", ix.DocCount())
	fmt.Printf("generation: %d\n", ix.Generation())
	for _, v := range ix.Snapshot() {
		deleted := 0
		if v.Deleted != nil {
			deleted = v.Deleted.Len()
		}
		fmt.Printf("segment %s: %d docs, %d deleted, %d terms\n",
			v.Reader.Name(), v.Reader.DocCount(), deleted, v.Reader.TermCount())
	}
	return nil
}
