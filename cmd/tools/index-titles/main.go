// Command index-titles loads topic titles into the Elasticsearch suggestion index.
//
// Input is one title per line, optionally followed by a tab and a popularity rank:
//
//	index-titles -lang en -file titles.tsv
//	printf 'Tokyo\t10\nTokyo Tower\t3\n' | index-titles -lang en
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"wikimind/internal/common/config"
	"wikimind/internal/common/database"
	"wikimind/internal/common/logger"
	"wikimind/internal/suggest"
)

func main() {
	configPath := flag.String("config", "", "Config file (defaults to configs/config.yaml)")
	lang := flag.String("lang", "en", "Retrieval language code of the titles")
	file := flag.String("file", "", "Title file; reads stdin when empty")
	batch := flag.Int("batch", 500, "Documents per bulk request")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	in := io.Reader(os.Stdin)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal("open title file", zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	ids, docs, err := readTitles(in, *lang)
	if err != nil {
		log.Fatal("read titles", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		log.Fatal("elasticsearch client", zap.Error(err))
	}
	index := cfg.Suggestions.Index
	if err := es.EnsureIndex(ctx, index, suggest.TitleMapping); err != nil {
		log.Fatal("create index", zap.String("index", index), zap.Error(err))
	}

	for start := 0; start < len(docs); start += *batch {
		end := min(start+*batch, len(docs))
		if err := es.BulkIndex(ctx, index, ids[start:end], docs[start:end]); err != nil {
			log.Fatal("bulk index", zap.Int("offset", start), zap.Error(err))
		}
		log.Info("Indexed titles", zap.Int("done", end), zap.Int("total", len(docs)))
	}
	log.Info("Title index loaded", zap.String("index", index), zap.String("language", *lang), zap.Int("titles", len(docs)))
}

// readTitles parses the input into documents keyed by language and lowercased title. Repeated
// titles keep the last rank seen.
func readTitles(r io.Reader, languageCode string) ([]string, []interface{}, error) {
	languageCode = strings.ToLower(strings.TrimSpace(languageCode))
	if languageCode == "" {
		return nil, nil, fmt.Errorf("language code is required")
	}

	pos := make(map[string]int)
	var ids []string
	var docs []interface{}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		doc := suggest.TitleDocument{Title: text, Language: languageCode}
		if title, rank, ok := strings.Cut(text, "\t"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rank))
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: invalid rank %q", line, rank)
			}
			doc.Title = strings.TrimSpace(title)
			doc.Rank = n
		}

		id := languageCode + ":" + strings.ToLower(doc.Title)
		if i, seen := pos[id]; seen {
			docs[i] = doc
			continue
		}
		pos[id] = len(docs)
		ids = append(ids, id)
		docs = append(docs, doc)
	}
	return ids, docs, scanner.Err()
}
