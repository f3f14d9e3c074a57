package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"seekchat/config"
	"seekchat/model"
	"seekchat/provider"
	"seekchat/proxy"
	"seekchat/storage"
	"seekchat/ui"
)

const Version = "v0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:           "seekchat",
		Short:         "A terminal chat client for DeepSeek and other OpenAI-compatible endpoints.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.close()

			view := ui.NewAppView(app.model)
			defer view.Close()

			p := tea.NewProgram(view, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("failed to run seekchat: %w", err)
			}
			return nil
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and stream the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	proxyCmd = &cobra.Command{
		Use:   "proxy",
		Short: "Run the forwarding proxy that adds the API key to upstream requests",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			closeLog := config.InitDebugLog(cfg.DataDir())
			defer closeLog()

			srv, err := proxy.New(cfg.Proxy)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(os.Stderr, "seekchat proxy listening on %s\n", srv.Addr())
			return srv.Run(ctx)
		},
	}

	chatsCmd = &cobra.Command{
		Use:   "chats [query]",
		Short: "List chats, newest first, optionally fuzzy-filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.close()

			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			current := app.model.Store.Current()
			for _, m := range app.model.Store.Search(query) {
				marker := " "
				if m.Key == current {
					marker = "*"
				}
				fmt.Printf("%s %s  %s  %-30s %d\n", marker, m.Key, m.CreatedAt.Format("2006-01-02 15:04"), m.Name, m.MessageCount)
			}
			return nil
		},
	}
)

var (
	askChat    string
	askNewChat bool
	askRole    string
)

func init() {
	askCmd.Flags().StringVar(&askChat, "chat", "", "key of the chat to continue (default: the current chat)")
	askCmd.Flags().BoolVar(&askNewChat, "new", false, "start a new chat")
	askCmd.Flags().StringVar(&askRole, "system", "", "system role for a new chat")

	rootCmd.AddCommand(askCmd, proxyCmd, chatsCmd)
}

type app struct {
	model    *model.Model
	closeLog func()
}

func (a *app) close() {
	if err := a.model.Close(); err != nil {
		config.DebugLog.Error("failed to close store", "error", err)
	}
	a.closeLog()
}

// openApp loads the configuration and opens the store, ready for any front
// end.
func openApp(opts ...model.ChatOption) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	closeLog := config.InitDebugLog(cfg.DataDir())

	backend, err := storage.NewBackend(cfg.StorageBackend, cfg.DataDir())
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	store, err := model.NewStore(
		storage.NewRecords(backend),
		model.WithSettingsOverride(storage.Settings{
			APIKey:  cfg.APIKeyOverride,
			APIBase: cfg.APIBaseOverride,
			Model:   cfg.ModelOverride,
		}),
		model.WithDefaultSystemRole(cfg.DefaultSystemRole),
	)
	if err != nil {
		_ = backend.Close()
		closeLog()
		return nil, err
	}

	client := provider.NewClient(provider.WithTimeout(cfg.RequestTimeout))
	return &app{
		model:    model.NewModel(cfg, store, client, Version, opts...),
		closeLog: closeLog,
	}, nil
}

func runAsk(_ *cobra.Command, args []string) error {
	printer := &streamPrinter{}
	a, err := openApp(model.WithObserver(printer.observe))
	if err != nil {
		return err
	}
	defer a.close()

	store := a.model.Store
	key := store.Current()
	switch {
	case askNewChat:
		if key, err = store.CreateConversation(askRole); err != nil {
			return err
		}
	case askChat != "":
		if err := store.SelectConversation(askChat); err != nil {
			return err
		}
		key = askChat
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.model.Chat.Submit(ctx, key, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println()

	switch res.Outcome {
	case provider.OutcomeFailed:
		if res.Err != nil {
			return res.Err
		}
		return errors.New(res.Text)
	case provider.OutcomeCancelled:
		return context.Canceled
	}
	return nil
}

// streamPrinter writes only the new part of each partial to stdout.
type streamPrinter struct {
	printed string
}

func (p *streamPrinter) observe(ev model.TurnEvent) {
	switch ev.State {
	case model.TurnStreaming, model.TurnCompleted, model.TurnCancelled, model.TurnFailed:
	default:
		return
	}
	if ev.Text == "" {
		return
	}
	if strings.HasPrefix(ev.Text, p.printed) {
		fmt.Print(ev.Text[len(p.printed):])
	} else {
		fmt.Print("\n" + ev.Text)
	}
	p.printed = ev.Text
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
