package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"capcache/internal/app"
	"capcache/internal/config"
	"capcache/internal/domain"
	appErrors "capcache/internal/errors"
	"capcache/internal/infra/exif"
	"capcache/internal/infra/fs"
	"capcache/internal/infra/share"
	"capcache/internal/infra/source"
	"capcache/internal/logging"
	"capcache/internal/presentation"
	"capcache/internal/tui"
)

type runtime struct {
	cfg      config.Config
	logger   logging.Logger
	fs       fs.AferoFS
	provider *share.Provider
	printer  presentation.Printer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(appErrors.Wrap(appErrors.InvalidConfig, "config", "", err))
	}

	root := newRootCommand(&cfg)
	if err := root.ExecuteContext(context.Background()); err != nil {
		exitWithError(err)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "capcache",
		Short:         "Stage a captured photo in the cache and share it by reference",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindFlags(root.PersistentFlags(), cfg)

	save := &cobra.Command{
		Use:   "save SOURCE",
		Short: "Copy a capture into the cache slot and print its shareable reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cfg)
			if err != nil {
				return err
			}
			return runSave(cmd.Context(), rt, args[0])
		},
	}
	save.Flags().BoolVarP(&cfg.Interactive, "interactive", "i", cfg.Interactive, "Show an interactive progress view")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Describe the cached capture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cfg)
			if err != nil {
				return err
			}
			inspector := app.Inspector{
				FS:        rt.fs,
				Exif:      exif.Reader{},
				CacheRoot: rt.cfg.CacheDir,
				Logger:    rt.logger,
			}
			info, err := inspector.Inspect(cmd.Context())
			if err != nil {
				return err
			}
			rt.printer.PrintInspect(info)
			return nil
		},
	}

	resolve := &cobra.Command{
		Use:   "resolve REF",
		Short: "Print the local path behind a shareable reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cfg)
			if err != nil {
				return err
			}
			ref := domain.ShareableRef(args[0])
			path, err := rt.provider.Resolve(ref, rt.cfg.AppID)
			if err != nil {
				return appErrors.Wrap(appErrors.NotFound, "resolve", args[0], err)
			}
			rt.printer.PrintResolved(ref, path)
			return nil
		},
	}

	root.AddCommand(save, inspect, resolve)
	return root
}

func setup(cfg *config.Config) (runtime, error) {
	if err := cfg.Finalize(); err != nil {
		return runtime{}, appErrors.Wrap(appErrors.InvalidConfig, "config", "", err)
	}
	mappings, err := cfg.ShareMappings()
	if err != nil {
		return runtime{}, appErrors.Wrap(appErrors.InvalidConfig, "config", "", err)
	}

	logger := logging.New(os.Stderr, cfg.Verbose)
	filesystem := fs.NewOS()
	roots := make([]share.Root, 0, len(mappings))
	for _, m := range mappings {
		roots = append(roots, share.Root{Name: m.Name, Path: m.Path})
		logger.Verbosef("Sharing %s as %q", m.Path, m.Name)
	}

	return runtime{
		cfg:      *cfg,
		logger:   logger,
		fs:       filesystem,
		provider: &share.Provider{FS: filesystem, Roots: roots, Logger: logger},
		printer:  presentation.Printer{Writer: os.Stdout, Verbose: cfg.Verbose},
	}, nil
}

func runSave(ctx context.Context, rt runtime, sourceRef string) error {
	saver := &app.CaptureSaver{
		FS: rt.fs,
		Sources: &source.Resolver{
			FS:      rt.fs,
			Content: rt.provider,
			Owner:   rt.cfg.AppID,
			HTTP:    source.NewHTTPClient(rt.cfg.UserAgent),
			Logger:  rt.logger,
		},
		Share:     rt.provider,
		CacheRoot: rt.cfg.CacheDir,
		Owner:     rt.cfg.AppID,
		Logger:    rt.logger,
	}

	if !rt.cfg.Interactive {
		result, err := saver.Save(ctx, sourceRef)
		if err != nil {
			return err
		}
		rt.printer.PrintSaved(result)
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var program *tea.Program
	saver.OnProgress = func(written, total int64) {
		if program != nil {
			program.Send(tui.SaveProgressMsg{Written: written, Total: total})
		}
	}
	model := tui.NewModel(tui.Config{
		Source:   sourceRef,
		CacheDir: rt.cfg.CacheDir,
		Cancel:   cancel,
		StartSave: func() tea.Cmd {
			return func() tea.Msg {
				result, err := saver.Save(ctx, sourceRef)
				if err != nil {
					return tui.ErrorMsg{Err: err}
				}
				return tui.SaveDoneMsg{Result: result}
			}
		},
	})
	program = tea.NewProgram(model)

	final, err := program.Run()
	if err != nil {
		return appErrors.Wrap(appErrors.Internal, "tui", "", err)
	}
	done, ok := final.(tui.Model)
	if !ok {
		return errors.New("unexpected tui model")
	}
	if errors.Is(done.Err, context.Canceled) {
		return errors.New("save cancelled")
	}
	if done.Err != nil {
		return done.Err
	}
	if done.Phase != tui.PhaseDone {
		return errors.New("save interrupted")
	}
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, appErrors.UserMessage(err))
	os.Exit(1)
}
