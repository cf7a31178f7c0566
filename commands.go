package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/gamma-omg/rag-ingest/chunker"
	"github.com/gamma-omg/rag-ingest/docstore"
	"github.com/gamma-omg/rag-ingest/ingest"
	"github.com/gamma-omg/rag-ingest/readers"
)

const storeInitTimeout = 10 * time.Second

type app struct {
	cfgPath  string
	envPath  string
	cfg      *Config
	log      *slog.Logger
	closeLog func() error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "rag-ingest",
		Short:         "Convert a folder of documents into retrieval-ready chunks",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "cfg/config.yaml", "Configuration file")
	root.PersistentFlags().StringVar(&a.envPath, "env", ".env", "Optional dotenv file with RAG_* overrides")

	root.AddCommand(a.ingestCmd(), a.indexCmd(), a.searchCmd(), a.serveCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := loadEnvFile(a.envPath); err != nil {
		return err
	}

	cfg, err := readConfig(a.cfgPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg, a.log, a.closeLog = cfg, log, closeLog
	return nil
}

// execute runs root and closes the log afterwards, including when a command
// fails.
func (a *app) execute(ctx context.Context, root *cobra.Command) (err error) {
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()

	return root.ExecuteContext(ctx)
}

func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}

	closeLog := a.closeLog
	a.closeLog = nil
	return closeLog()
}

func (a *app) folder(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.cfg.DocRoot != "" {
		return a.cfg.DocRoot, nil
	}
	return "", errors.New("no folder given and doc_root is not configured")
}

func (a *app) pipeline() (*ingest.Pipeline, error) {
	reg := readers.NewRegistry(readers.Options{
		MediaDir:       a.cfg.MediaDir,
		MarkdownTables: a.cfg.MarkdownTables,
	})

	return ingest.NewPipeline(a.log, reg, ingest.Config{
		Chunking: a.cfg.chunking(),
		Workers:  a.cfg.Workers,
	})
}

func (a *app) ingest(folder string) (*ingest.Result, error) {
	p, err := a.pipeline()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := p.Ingest(folder)
	if res != nil {
		a.log.Info("ingestion finished",
			slog.String("folder", folder),
			slog.Int("documents", res.Documents),
			slog.Int("nodes", len(res.Nodes)),
			slog.Int("skipped", len(res.Skipped)),
			slog.Duration("elapsed", time.Since(start)))
	}

	return res, err
}

func (a *app) openStore(ctx context.Context, reset bool) (docstore.Store, error) {
	if a.cfg.Store.Backend == backendChroma {
		ef, err := createEmbeddingFunction(a.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding function: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, storeInitTimeout)
		defer cancel()

		store, err := docstore.NewChromaStore(ctx, docstore.ChromaStoreConfig{
			Options:       a.cfg.storeOptions(reset),
			BaseURL:       a.cfg.Store.ChromaAddr,
			EmbeddingFunc: ef,
			Log:           a.log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Chroma doc store: %w", err)
		}
		return store, nil
	}

	ef, err := createChromemEmbeddingFunc(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding function: %w", err)
	}

	store, err := docstore.NewChromemStore(docstore.ChromemStoreConfig{
		Options:       a.cfg.storeOptions(reset),
		Path:          a.cfg.Store.Path,
		Compress:      a.cfg.Store.Compress,
		EmbeddingFunc: ef,
		Log:           a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chromem doc store: %w", err)
	}
	return store, nil
}

func (a *app) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [folder]",
		Short: "Chunk every document in a folder and print the node lengths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := a.folder(args)
			if err != nil {
				return err
			}

			res, err := a.ingest(folder)
			if res != nil {
				printNodes(cmd.OutOrStdout(), res.Nodes)
				printSkipped(cmd.ErrOrStderr(), res.Skipped)
			}
			return err
		},
	}
}

func (a *app) indexCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "index [folder]",
		Short: "Chunk a folder and store the nodes in the vector store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := a.folder(args)
			if err != nil {
				return err
			}

			res, err := a.ingest(folder)
			if err != nil {
				if res != nil {
					printSkipped(cmd.ErrOrStderr(), res.Skipped)
				}
				return err
			}
			printSkipped(cmd.ErrOrStderr(), res.Skipped)

			store, err := a.openStore(cmd.Context(), reset)
			if err != nil {
				return err
			}

			return a.index(cmd.Context(), store, res.Nodes)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Reinitialize the collection from scratch")
	return cmd
}

// index replaces the stored nodes of every document in nodes.
func (a *app) index(ctx context.Context, store docstore.Store, nodes []chunker.Node) error {
	for _, doc := range groupBySource(nodes) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := store.Forget(ctx, doc.File); err != nil {
			return err
		}
		if err := store.Injest(ctx, doc); err != nil {
			return err
		}

		a.log.Info("document indexed", slog.String("file", doc.File), slog.Int("nodes", len(doc.Nodes)))
	}

	return nil
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve the stored nodes most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}

			res, err := store.Retrieve(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range res {
				fmt.Fprintf(out, "%.3f\t%s\t%s\n%s\n\n", r.Score, r.File, r.Section, r.Text)
			}
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var stdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose retrieval as an MCP tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}

			srv := NewRagServer(store, a.log)
			if stdio {
				return server.ServeStdio(srv)
			}

			sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", a.cfg.ServerAddr)))
			a.log.Info("serving MCP over SSE", slog.String("addr", a.cfg.ServerAddr))
			return sse.Start(a.cfg.ServerAddr)
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve over stdin/stdout instead of SSE")
	return cmd
}

// groupBySource splits a node sequence into per-file documents, keeping the
// order in which files first appear.
func groupBySource(nodes []chunker.Node) []docstore.Doc {
	var docs []docstore.Doc
	index := make(map[string]int)

	for _, n := range nodes {
		i, ok := index[n.Source]
		if !ok {
			i = len(docs)
			index[n.Source] = i
			docs = append(docs, docstore.Doc{File: n.Source})
		}
		docs[i].Nodes = append(docs[i].Nodes, n)
	}

	return docs
}

func printNodes(w io.Writer, nodes []chunker.Node) {
	for _, n := range nodes {
		fmt.Fprintln(w, n.Size)
	}
}

func printSkipped(w io.Writer, skipped []ingest.Skipped) {
	for _, s := range skipped {
		fmt.Fprintf(w, "skipped %s (%s): %v\n", s.Path, s.Kind, s.Err)
	}
}
