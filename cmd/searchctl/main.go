// Command searchctl builds an index from a corpus and answers queries from
// the command line. It also prepares corpora: pack compresses a TSV file
// and upload stores one in object storage.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/objstore"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	numberFlag := &cli.IntFlag{
		Name:    "number",
		Aliases: []string{"n"},
		Usage:   "Maximum number of results",
		Value:   10,
	}
	return &cli.App{
		Name:      "searchctl",
		Usage:     "Query an approximate search index built from a corpus",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
			},
			&cli.StringFlag{
				Name:    "corpus",
				Usage:   "Corpus file; overrides corpus.path and selects the file source",
				EnvVars: []string{"AS_CORPUS_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetupWriter(os.Stderr, c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Print the best documents containing every query word",
				ArgsUsage: "QUERY",
				Flags:     []cli.Flag{numberFlag},
				Action:    searchCommand,
			},
			{
				Name:      "suggest",
				Usage:     "Print corrections and completions of the last query word",
				ArgsUsage: "QUERY",
				Flags:     []cli.Flag{numberFlag},
				Action:    suggestCommand,
			},
			{
				Name:  "stats",
				Usage: "Print index statistics",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dump",
						Usage: "Also print every term with its scored postings",
					},
				},
				Action: statsCommand,
			},
			{
				Name:  "pack",
				Usage: "Compress a corpus file; the codec follows the output suffix (.gz, .zst, .lz4)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "Input corpus", Required: true},
					&cli.StringFlag{Name: "out", Usage: "Output corpus", Required: true},
				},
				Action: packCommand,
			},
			{
				Name:  "upload",
				Usage: "Upload a corpus file to object storage",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "Corpus file to upload", Required: true},
					&cli.StringFlag{Name: "bucket", Usage: "Destination bucket", Required: true},
					&cli.StringFlag{Name: "key", Usage: "Destination key; defaults to the file name"},
				},
				Action: uploadCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if path := c.String("corpus"); path != "" {
		cfg.Corpus.Source = config.SourceFile
		cfg.Corpus.Path = path
	}
	return cfg, nil
}

func openProcessor(c *cli.Context) (*executor.Processor, searcher.BuildInfo, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, searcher.BuildInfo{}, err
	}
	return searcher.Open(c.Context, cfg)
}

func queryArg(c *cli.Context) (string, error) {
	if c.NArg() == 0 {
		return "", fmt.Errorf("a query is required")
	}
	return strings.Join(c.Args().Slice(), " "), nil
}

func searchCommand(c *cli.Context) error {
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	proc, _, err := openProcessor(c)
	if err != nil {
		return err
	}
	result, err := proc.Execute(c.Context, parser.Parse(query), c.Int("number"))
	if err != nil {
		return err
	}
	out := c.App.Writer
	for i, hit := range result.Results {
		fmt.Fprintf(out, "%d\t%.4f\t%s\n", i+1, hit.Score, hit.URL)
	}
	fmt.Fprintf(out, "%d of %d matching documents\n", len(result.Results), result.TotalHits)
	return nil
}

func suggestCommand(c *cli.Context) error {
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	proc, _, err := openProcessor(c)
	if err != nil {
		return err
	}
	for _, s := range proc.SimilarWords(c.Int("number"), query) {
		fmt.Fprintln(c.App.Writer, s)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	proc, info, err := openProcessor(c)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "source:        %s\n", info.Source)
	fmt.Fprintf(out, "records:       %d\n", info.Stats.Records)
	fmt.Fprintf(out, "documents:     %d\n", info.Stats.Documents)
	fmt.Fprintf(out, "terms:         %d\n", info.Stats.Terms)
	fmt.Fprintf(out, "postings:      %d\n", info.Stats.Postings)
	fmt.Fprintf(out, "avg length:    %.3f\n", info.Stats.AvgDocLength)
	fmt.Fprintf(out, "k-grams:       %d (k=%d)\n", info.KGrams, proc.Matcher().K())
	fmt.Fprintf(out, "build time:    %s\n", info.Duration)
	if !c.Bool("dump") {
		return nil
	}
	for _, entry := range proc.Engine().Terms() {
		parts := make([]string, len(entry.Postings))
		for i, p := range entry.Postings {
			parts[i] = p.String()
		}
		fmt.Fprintf(out, "%s\t%s\n", entry.Term, strings.Join(parts, " "))
	}
	return nil
}

func packCommand(c *cli.Context) error {
	in, err := os.Open(c.String("in"))
	if err != nil {
		return err
	}
	defer in.Close()
	outPath := c.String("out")
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	codec := source.DetectCompression(outPath)
	w, err := source.NewCompressor(f, codec)
	if err != nil {
		f.Close()
		return err
	}
	n, err := io.Copy(w, in)
	if err != nil {
		w.Close()
		f.Close()
		return fmt.Errorf("compressing %s: %w", c.String("in"), err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "packed %d bytes into %s (%s)\n", n, outPath, codec)
	return nil
}

func uploadCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := objstore.New(cfg.ObjectStore)
	if err != nil {
		return err
	}
	path := c.String("file")
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	key := c.String("key")
	if key == "" {
		key = info.Name()
	}
	if err := store.Put(c.Context, c.String("bucket"), key, f, info.Size()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "uploaded %s to s3://%s/%s\n", path, c.String("bucket"), key)
	return nil
}
