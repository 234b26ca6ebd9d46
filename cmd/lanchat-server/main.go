// Lanchat-server is a real-time chat relay for a local network.
//
// It implements the WebSocket protocol from scratch over a raw TCP
// listener: opening handshake, frame codec, and a room/broadcast relay on
// top. The same port also serves a small set of plain HTTP endpoints
// (/info, /me, /peers) and, when enabled, announces the server over mDNS
// so clients on the LAN can find it.
//
// Usage:
//
//	lanchat-server serve [flags]
//
// See 'lanchat-server serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/merritt/lanchat/internal/config"
	"github.com/merritt/lanchat/internal/server"
	"github.com/merritt/lanchat/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lanchat-server",
	Short: "LAN chat relay over hand-rolled WebSocket",
	Long: `A standalone chat relay for a local network.

Clients connect over WebSocket, create or join rooms by id, and exchange
text messages fanned out to the other room members. The WebSocket layer is
implemented in-process (no external protocol library), which keeps the
server a single static binary with full control over the upgrade response.

Use the 'lanchat' terminal client to connect.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	configPath string
	host       string
	port       int
	name       string
	logLevel   string
	discovery  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat relay",
	Long: `Start the lanchat relay and block until interrupted.

Configuration is read from an optional YAML file; flags set explicitly on
the command line override file values. With discovery enabled the server
announces itself as an _lanchat._tcp mDNS service so clients can find it
without knowing its address.`,
	Example: `  # Start on the default port 8080, announced over mDNS
  lanchat-server serve

  # Custom port and instance name, verbose logging
  lanchat-server serve --port 9191 --name living-room --log-level debug

  # Load settings from a file
  lanchat-server serve --config ~/.config/lanchat/config.yaml

  # LAN-invisible instance bound to one interface
  lanchat-server serve --host 192.168.1.10 --discovery=false`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	serveCmd.Flags().StringVar(&host, "host", config.DefaultHost, "Bind address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", config.DefaultPort, "Listen port")
	serveCmd.Flags().StringVar(&name, "name", config.DefaultName, "Instance name shown in mDNS scans")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&discovery, "discovery", true, "Announce the server over mDNS and scan for peers")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Explicit flags win over file values
	if cmd.Flags().Changed("host") {
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("name") {
		cfg.Name = name
	}
	if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("discovery") {
		cfg.Discovery = discovery
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	return srv.Start()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}
