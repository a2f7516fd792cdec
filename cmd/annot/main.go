package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pbaille/annot/internal/annotation"
	"github.com/pbaille/annot/internal/api"
	"github.com/pbaille/annot/internal/config"
	"github.com/pbaille/annot/internal/domain"
	"github.com/pbaille/annot/internal/logger"
	"github.com/pbaille/annot/internal/taxonomy"
	"github.com/pbaille/annot/internal/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "annot: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "annot",
		Short:         "Tag data files against a label / sub-label taxonomy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "settings file")

	rootCmd.AddCommand(filesCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(labelsCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(toggleCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(serveCmd())
	return rootCmd
}

// session is everything a command needs, rehydrated from the data folder
type session struct {
	id    string
	cfg   *config.Config
	log   *zap.Logger
	store *annotation.Store
	ws    *workspace.Workspace
}

// openSession loads settings, taxonomy and data folder. With loadState the
// saved annotation file is read back into the store; commands that replace
// the whole state skip it so a bad file cannot lock them out.
func openSession(loadState bool) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	log, err := logger.New(cfg.Debug, id)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	tax, err := taxonomy.Load(cfg.LabelOptionsPath, cfg.EncodingPositionsPath)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.Open(cfg.DataDir, cfg.AnnotationFile, cfg.SummaryFile)
	if err != nil {
		return nil, err
	}

	store := annotation.New(tax)
	if loadState {
		if err := ws.LoadState(store); err != nil {
			log.Warn("annotation state unreadable", zap.String("data_dir", cfg.DataDir), zap.Error(err))
			_ = logger.Sync(log)
			return nil, fmt.Errorf("load annotation state from %s: %w (run 'annot reset' or 'annot import' to replace it)",
				cfg.DataDir, err)
		}
	}
	log.Debug("session opened",
		zap.String("data_dir", cfg.DataDir),
		zap.Int("records", len(store.Records())))

	return &session{id: id, cfg: cfg, log: log, store: store, ws: ws}, nil
}

func (s *session) Close() {
	_ = logger.Sync(s.log)
}

// saveAll rewrites the annotation and summary files after a session-wide change
func (s *session) saveAll() error {
	if err := s.ws.SaveState(s.store); err != nil {
		return err
	}
	return s.ws.WriteSummary(s.store.SummarizeByTaxonomy().Text(s.cfg.SummaryLanguage))
}

// confirm asks before destroying existing annotations. Without a terminal
// the answer is no.
func confirm(question string) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return false
	}
	fmt.Printf("%s [y/N] ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List data files with their encodings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			files, err := s.ws.Files()
			if err != nil {
				return err
			}

			if len(files) == 0 {
				fmt.Printf("No .tsv or .csv files in %s\n", s.ws.Dir())
				return nil
			}

			for _, f := range files {
				labels, err := s.store.Encode(f, domain.TopLevel)
				if err != nil {
					return err
				}
				subLabels, err := s.store.Encode(f, domain.Sub)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s,%s\n", f, labels, subLabels)
			}
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	var noContent bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a data file with its labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			if !noContent {
				content, err := s.ws.Content(id)
				if err != nil {
					return err
				}
				fmt.Printf("%s\n\n", truncate(content, 2000))
			}

			fmt.Print(renderTree(s.store, id, s.cfg.SummaryLanguage))
			return printEncoding(s.store, id)
		},
	}

	cmd.Flags().BoolVar(&noContent, "no-content", false, "only show labels")
	return cmd
}

func labelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels [id]",
		Short: "Show the taxonomy, highlighting the labels active on id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			fmt.Print(renderTree(s.store, id, s.cfg.SummaryLanguage))
			return nil
		},
	}
}

// labelChangeCmd builds add/remove/toggle, which share their bookkeeping
func labelChangeCmd(use, short string, change func(s *annotation.Store, id, key string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id] [key...]",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			if id == annotation.DefaultID {
				return fmt.Errorf("record id %q is reserved", id)
			}
			for _, key := range args[1:] {
				if err := change(s.store, id, key); err != nil {
					return err
				}
				s.log.Debug(use, zap.String("id", id), zap.String("key", key))
			}

			if err := s.ws.Persist(s.store, id, s.cfg.SummaryLanguage); err != nil {
				return err
			}
			return printEncoding(s.store, id)
		},
	}
}

func addCmd() *cobra.Command {
	return labelChangeCmd("add", "Activate labels on a data file", func(s *annotation.Store, id, key string) error {
		return s.AddLabel(id, key)
	})
}

func removeCmd() *cobra.Command {
	return labelChangeCmd("remove", "Deactivate labels on a data file", func(s *annotation.Store, id, key string) error {
		return s.RemoveLabel(id, key)
	})
}

func toggleCmd() *cobra.Command {
	return labelChangeCmd("toggle", "Flip labels on a data file", func(s *annotation.Store, id, key string) error {
		_, err := s.Toggle(id, key)
		return err
	})
}

func summaryCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count how many files carry each label",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			if lang == "" {
				lang = s.cfg.SummaryLanguage
			}
			fmt.Print(s.store.SummarizeByTaxonomy().Text(lang))
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "display language (zh or en)")
	return cmd
}

func importCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace current annotations with a saved annotation file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			annotations, err := workspace.ReadAnnotations(args[0])
			if err != nil {
				return err
			}

			// a state file that no longer loads still counts as data to lose
			hasData := s.ws.LoadState(s.store) != nil || len(s.store.Records()) > 0
			if hasData && !yes && !confirm("Current annotation data will be removed. Continue?") {
				fmt.Println("Import cancelled.")
				return nil
			}

			n, dropped, err := s.ws.Import(s.store, annotations)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			if err := s.saveAll(); err != nil {
				return err
			}

			if dropped > 0 {
				s.log.Warn("annotations dropped on import",
					zap.String("file", args[0]), zap.Int("dropped", dropped), zap.String("data_dir", s.ws.Dir()))
			}
			s.log.Info("annotations imported", zap.String("file", args[0]), zap.Int("records", n), zap.Int("dropped", dropped))
			fmt.Printf("Loaded %d records\n", n)
			if dropped > 0 {
				fmt.Printf("Dropped %d records with no matching file in %s\n", dropped, s.ws.Dir())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask before replacing annotations")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Save all annotations to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := workspace.Export(s.store, args[0]); err != nil {
				return err
			}
			fmt.Printf("Saved %d records to %s\n", len(s.store.Records()), args[0])
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear all annotations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			if !yes && !confirm("Current annotation data will be removed. Continue?") {
				fmt.Println("Reset cancelled.")
				return nil
			}

			s.store.Reset()
			if err := s.saveAll(); err != nil {
				return err
			}
			s.log.Info("annotations reset", zap.String("data_dir", s.ws.Dir()))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the annotation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			if addr == "" {
				addr = s.cfg.ServerAddr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				err := s.ws.Watch(ctx, func(name string) {
					s.log.Info("new data file", zap.String("id", name))
				})
				if err != nil {
					s.log.Warn("data folder watch stopped", zap.Error(err))
				}
			}()

			server := api.New(s.store, s.ws, s.cfg.SummaryLanguage, s.id, s.log)
			return server.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default from settings)")
	return cmd
}

func printEncoding(s *annotation.Store, id string) error {
	labels, err := s.Encode(id, domain.TopLevel)
	if err != nil {
		return err
	}
	subLabels, err := s.Encode(id, domain.Sub)
	if err != nil {
		return err
	}
	fmt.Printf("%s,%s\n", labels, subLabels)
	return nil
}

// truncate shortens s to at most max runes
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
