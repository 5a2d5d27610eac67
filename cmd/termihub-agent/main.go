package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/armaxri/termiHub-sub001/internal/agentserver"
	"github.com/armaxri/termiHub-sub001/internal/connection"
	"github.com/armaxri/termiHub-sub001/internal/daemon"
	"github.com/armaxri/termiHub-sub001/internal/filebrowser"
	"github.com/armaxri/termiHub-sub001/internal/logger"
	"github.com/armaxri/termiHub-sub001/internal/monitoring"
	"github.com/armaxri/termiHub-sub001/internal/session"
	"github.com/armaxri/termiHub-sub001/internal/spawner"
	"github.com/spf13/cobra"
)

// termihub-agent runs on a remote host in one of two modes (§4.5/§4.7):
//
//   - --stdio: a JSON-RPC dispatcher over stdin/stdout. This is the
//     default config.RemoteSettings.AgentCommand RemoteProxy execs
//     over an SSH channel, so it's a flag on the root command rather
//     than a subcommand.
//   - --daemon <session-id>: a single detachable PTY host, spawned by
//     DaemonSpawner or started directly with the TERMIHUB_* environment,
//     to survive the parent connection dropping.
func main() {
	var stdio bool
	var daemonID string
	var socket string
	var cols, rows int
	var cwd string
	var version bool

	root := &cobra.Command{
		Use:   "termihub-agent",
		Short: "termiHub remote agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case version:
				fmt.Printf("termihub-agent %s (protocol %s)\n", agentserver.AgentVersion, agentserver.ProtocolVersion)
				return nil
			case stdio:
				return runStdio()
			case daemonID != "":
				return runDaemon(daemonID, socket, cols, rows, cwd)
			default:
				return cmd.Help()
			}
		},
	}
	root.Flags().BoolVar(&version, "version", false, "Print agent and protocol version")
	root.Flags().BoolVar(&stdio, "stdio", false, "Serve the JSON-RPC agent protocol over stdin/stdout")
	root.Flags().StringVar(&daemonID, "daemon", "", "Host one detachable PTY for the given session id")
	root.Flags().StringVar(&socket, "socket", "", "Unix socket path to serve on (overrides TERMIHUB_SOCKET_PATH)")
	root.Flags().IntVar(&cols, "cols", 80, "Initial PTY column count")
	root.Flags().IntVar(&rows, "rows", 24, "Initial PTY row count")
	root.Flags().StringVar(&cwd, "cwd", "", "Working directory for the spawned process")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runStdio wires a fresh session.Manager (no "remote" type — an agent
// never proxies to another agent) plus monitoring and file-browser
// providers, and serves the NDJSON protocol over stdin/stdout until the
// peer closes the channel or sends agent.shutdown.
func runStdio() error {
	if err := logger.Init("info", ""); err != nil {
		return fmt.Errorf("termihub-agent: init logger: %w", err)
	}
	log := logger.Log

	registry := connection.NewDefaultRegistry()
	sessions := session.NewManager(registry, log)
	hosts := monitoring.NewHostRegistry()
	mon := monitoring.NewDispatcher(monitoring.NewLocalCollector(), hosts, log)
	files := filebrowser.NewRegistry()

	dispatcher := agentserver.NewDispatcher(sessions, mon, files, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.OnShutdown(cancel)

	conn := stdioConn{os.Stdin, os.Stdout}
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()

	if err := dispatcher.Serve(ctx, conn); err != nil && ctx.Err() == nil {
		return fmt.Errorf("termihub-agent: serve stdio: %w", err)
	}
	return nil
}

type stdioConn struct {
	io.Reader
	io.Writer
}

// runDaemon spawns one detachable PTY and serves it over a Unix socket
// until the child exits, per §4.2. Socket path and PTY geometry arrive
// either as flags (the shape DaemonSpawner already sends when launching
// this binary locally) or as the TERMIHUB_* environment contract
// documented for remote/manual invocations. When both are set, --socket
// wins over TERMIHUB_SOCKET_PATH, while TERMIHUB_COLS/TERMIHUB_ROWS
// override --cols/--rows. Process composition (what to run) is env-var only, per that contract.
func runDaemon(sessionID, socket string, cols, rows int, cwd string) error {
	if err := logger.Init("info", ""); err != nil {
		return fmt.Errorf("termihub-agent: init logger: %w", err)
	}
	log := logger.Log

	if socket == "" {
		socket = os.Getenv("TERMIHUB_SOCKET_PATH")
	}
	if socket == "" {
		return fmt.Errorf("termihub-agent: --daemon requires --socket or TERMIHUB_SOCKET_PATH")
	}

	program, progArgs, err := resolveDaemonCommand()
	if err != nil {
		return err
	}

	env, err := daemonEnvOverlay()
	if err != nil {
		return err
	}

	capacity := 0
	if raw := os.Getenv("TERMIHUB_BUFFER_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("termihub-agent: bad TERMIHUB_BUFFER_SIZE %q: %w", raw, err)
		}
		capacity = n
	}
	if raw := os.Getenv("TERMIHUB_COLS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cols = n
		}
	}
	if raw := os.Getenv("TERMIHUB_ROWS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			rows = n
		}
	}

	size := spawner.Size{Cols: uint16(cols), Rows: uint16(rows)}
	d, err := daemon.SpawnWithCapacity(sessionID, program, progArgs, size, env, cwd, capacity, log)
	if err != nil {
		return fmt.Errorf("termihub-agent: spawn daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- d.ListenAndServe(ctx, socket) }()

	select {
	case <-d.Exited():
		log.Info("termihub-agent: daemon child exited", "session_id", sessionID)
		stop()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		<-errCh
		return nil
	}
}

// resolveDaemonCommand picks the program and args to spawn from
// TERMIHUB_COMMAND/TERMIHUB_COMMAND_ARGS/TERMIHUB_SHELL (§6): an
// explicit command (currently only "docker" is documented) takes the
// args list verbatim; anything else is resolved as a shell name via
// the same spawner.ResolveShell every local ConnectionType uses.
func resolveDaemonCommand() (string, []string, error) {
	command := os.Getenv("TERMIHUB_COMMAND")
	if command != "" {
		var cmdArgs []string
		if raw := os.Getenv("TERMIHUB_COMMAND_ARGS"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &cmdArgs); err != nil {
				return "", nil, fmt.Errorf("termihub-agent: bad TERMIHUB_COMMAND_ARGS: %w", err)
			}
		}
		return command, cmdArgs, nil
	}
	program, args := spawner.ResolveShell(os.Getenv("TERMIHUB_SHELL"))
	return program, args, nil
}

func daemonEnvOverlay() (map[string]string, error) {
	raw := os.Getenv("TERMIHUB_ENV")
	if raw == "" {
		return nil, nil
	}
	var env map[string]string
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("termihub-agent: bad TERMIHUB_ENV: %w", err)
	}
	return env, nil
}
