package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickjmiller/floneum/content"
	"github.com/nickjmiller/floneum/host"
)

var (
	queryText  string
	queryTopK  int
	queryModel string
)

var queryCmd = &cobra.Command{
	Use:   "query [dir]",
	Short: "Embed local text files and search them",
	Long: `Split every matching file under dir into paragraphs, embed them with a
model from the catalog into a fresh embedding database, and print the
paragraphs closest to the query.

Examples:
  floneum query -q "handle ownership"            # Search the content dir
  floneum query -q "retry" -k 3 ./docs           # Search ./docs
  floneum query -q "retry" -m text-embedding-3-small`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "query text")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 5, "number of results")
	queryCmd.Flags().StringVarP(&queryModel, "model", "m", "local-embedding", "embedding model name")
	_ = queryCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if queryTopK <= 0 {
		return fmt.Errorf("top-k must be positive")
	}

	dir := cfg.Content.Dir
	if len(args) > 0 {
		dir = args[0]
	}
	source := content.NewDirSource(dir, cfg.Content.Includes...)
	files, err := source.List()
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files in %s match %v", dir, cfg.Content.Includes)
	}

	adapter, err := newAdapter(func(o *host.Options) { o.Source = source })
	if err != nil {
		return err
	}
	defer adapter.Close()

	m, err := adapter.CreateModel(ctx, queryModel)
	if err != nil {
		return err
	}
	db, err := adapter.CreateEmbeddingDb(ctx, nil, nil)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	var paragraphs int
	for _, name := range files {
		docs, err := fileParagraphs(ctx, adapter, name)
		if err != nil {
			logger.Warn("skipping file", zap.String("file", name), zap.Error(err))
			_ = bar.Add(1)
			continue
		}
		if err := adapter.AddDocuments(ctx, db, m, docs); err != nil {
			return fmt.Errorf("embed %s: %w", name, err)
		}
		paragraphs += len(docs)
		_ = bar.Add(1)
	}

	search, err := adapter.Embed(ctx, m, queryText)
	if err != nil {
		return err
	}
	results, err := adapter.FindClosest(ctx, db, search, uint32(queryTopK))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Searched %d paragraphs in %d files\n\n", paragraphs, len(files))
	for i, r := range results {
		preview := strings.ReplaceAll(r.Document.Body, "\n", " ")
		if len(preview) > 160 {
			preview = preview[:160] + "..."
		}
		fmt.Fprintf(out, "%d. [%.4f] %s\n", i+1, r.Distance, preview)
	}
	return nil
}

// fileParagraphs loads a file as a page and returns its paragraphs prefixed
// with the file name. The page handle is released before returning.
func fileParagraphs(ctx context.Context, adapter *host.Adapter, name string) ([]string, error) {
	page, err := adapter.CreatePage(ctx, content.FileScheme+name)
	if err != nil {
		return nil, err
	}
	defer adapter.DropPage(page)

	text, err := adapter.PageText(ctx, page)
	if err != nil {
		return nil, err
	}
	var docs []string
	for _, p := range content.Paragraphs(text) {
		docs = append(docs, name+": "+p)
	}
	return docs, nil
}
