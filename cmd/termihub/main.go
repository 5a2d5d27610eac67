package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/armaxri/termiHub-sub001/internal/agentclient"
	"github.com/armaxri/termiHub-sub001/internal/config"
	"github.com/armaxri/termiHub-sub001/internal/connection"
	"github.com/armaxri/termiHub-sub001/internal/logger"
	"github.com/armaxri/termiHub-sub001/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// termihub is the thin desktop-side CLI: it exercises the Session
// Manager directly, standing in for the Tauri UI the original ships.
// Every session lives only as long as this process does — there is no
// daemon command here. Sessions of the "remote" connection type run
// inside the remote host's termihub-agent --stdio process instead.
func main() {
	app := newApp()

	root := &cobra.Command{
		Use:   "termihub",
		Short: "termiHub — multi-transport terminal multiplexer",
	}
	root.AddCommand(
		sessionCmd(app),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app wires the registry, session manager, and agent connection pool
// once per process invocation.
type app struct {
	manager *session.Manager
	agents  *agentclient.Manager
}

func newApp() *app {
	cfgDir, err := configDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, "termihub:", err)
		os.Exit(1)
	}
	appCfg := config.NewAppConfigManager()
	cwd, _ := os.Getwd()
	if err := appCfg.Load(cfgDir, cwd); err != nil {
		fmt.Fprintln(os.Stderr, "termihub: load config:", err)
		os.Exit(1)
	}
	for _, w := range appCfg.Warnings() {
		fmt.Fprintf(os.Stderr, "termihub: warning: %s: %s\n", w.FileName, w.Message)
	}

	if err := logger.Init(appCfg.Get().LogLevel, appCfg.Get().LogFile); err != nil {
		fmt.Fprintln(os.Stderr, "termihub: init logger:", err)
		os.Exit(1)
	}

	registry := connection.NewDefaultRegistry()
	agents := agentclient.NewManager()
	connection.RegisterRemote(registry, agents)

	return &app{
		manager: session.NewManager(registry, logger.Log),
		agents:  agents,
	}
}

// configDir returns ~/.termihub.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("termihub: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".termihub"), nil
}

func sessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, list, and drive terminal sessions",
	}
	cmd.AddCommand(
		sessionCreateCmd(a),
		sessionListCmd(a),
		sessionAttachCmd(a),
		sessionCloseCmd(a),
	)
	return cmd
}

func sessionCreateCmd(a *app) *cobra.Command {
	var typeID, title, settingsJSON string
	var attach bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if typeID == "" {
				return fmt.Errorf("termihub: --type is required (one of %v)", a.manager.Registry().TypeIDs())
			}
			raw := map[string]any{}
			if settingsJSON != "" {
				if err := json.Unmarshal([]byte(settingsJSON), &raw); err != nil {
					return fmt.Errorf("termihub: parse --config: %w", err)
				}
			}
			settings, err := config.Decode(config.ConnectionKind(typeID), raw)
			if err != nil {
				return fmt.Errorf("termihub: decode settings: %w", err)
			}

			info, err := a.manager.Create(cmd.Context(), session.CreateRequest{
				TypeID:   typeID,
				Settings: settings,
				Title:    title,
			})
			if err != nil {
				return fmt.Errorf("termihub: create session: %w", err)
			}
			fmt.Printf("created: %s (%s, %s)\n", info.SessionID, info.TypeID, info.Title)

			if attach {
				return runAttach(cmd.Context(), a, info.SessionID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typeID, "type", "", "Connection type (local, ssh, serial, telnet, docker, wsl, remote)")
	cmd.Flags().StringVar(&title, "title", "", "Override the derived session title")
	cmd.Flags().StringVar(&settingsJSON, "config", "", "Connection settings as a JSON object")
	cmd.Flags().BoolVar(&attach, "attach", false, "Attach to the new session immediately")
	return cmd
}

func sessionListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := a.manager.List()
			if len(infos) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tTITLE\tATTACHED\tCREATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", info.SessionID, info.TypeID, info.Title, info.Attached, info.CreatedAt.Format("15:04:05"))
			}
			return w.Flush()
		},
	}
}

func sessionCloseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "close [session-id]",
		Short: "Close a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.manager.Close(args[0]); err != nil {
				return fmt.Errorf("termihub: close session: %w", err)
			}
			fmt.Println("closed:", args[0])
			return nil
		},
	}
}

func sessionAttachCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attach [session-id]",
		Short: "Attach to a session, passing the local terminal through",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(cmd.Context(), a, args[0])
		},
	}
}

// runAttach puts the local terminal in raw mode and pumps stdin/stdout
// against the session until it exits or the process receives an
// interrupt; the raw-mode dance and SIGWINCH-driven resize mirror the
// teacher's own interactive attach loop (cmd/wt's sandbox attach).
func runAttach(ctx context.Context, a *app, sessionID string) error {
	ch, err := a.manager.Attach(sessionID)
	if err != nil {
		return fmt.Errorf("termihub: attach: %w", err)
	}
	defer a.manager.Detach(sessionID, ch)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, oldState)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if term.IsTerminal(fd) {
		winch := make(chan os.Signal, 1)
		signal.Notify(winch, syscall.SIGWINCH)
		defer signal.Stop(winch)
		go func() {
			for range winch {
				if w, h, err := term.GetSize(fd); err == nil {
					a.manager.Resize(sessionID, w, h)
				}
			}
		}()
		if w, h, err := term.GetSize(fd); err == nil {
			a.manager.Resize(sessionID, w, h)
		}
	}

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				if werr := a.manager.Input(sessionID, data); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case session.EventOutput:
				os.Stdout.Write(ev.Data)
			case session.EventError:
				fmt.Fprintln(os.Stderr, "termihub:", ev.Message)
			case session.EventExit:
				if ev.ExitCode != nil {
					fmt.Printf("\r\nsession exited (%d)\r\n", *ev.ExitCode)
				}
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}
