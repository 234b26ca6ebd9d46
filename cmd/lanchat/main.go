// Lanchat is the terminal client for a lanchat relay.
//
// It speaks the same hand-rolled WebSocket dialect as the server: masked
// single-frame text messages after a verified opening handshake. The UI is
// an interactive Bubble Tea screen; without a --server flag the client
// scans the local network over mDNS and connects to the first relay it
// finds.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/merritt/lanchat/internal/client"
	"github.com/merritt/lanchat/internal/discovery"
	"github.com/merritt/lanchat/internal/ui"
	"github.com/merritt/lanchat/internal/version"
	"github.com/merritt/lanchat/internal/wire"
)

var (
	serverAddr string
	userName   string
	roomID     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lanchat",
	Short: "Terminal client for a lanchat relay",
	Long: `Connect to a lanchat relay and chat from the terminal.

Rooms are created with /create and joined with /join <id>; the room id is
what you share with the people you want in the conversation.`,
	Example: `  # Find a relay on the LAN via mDNS and connect
  lanchat

  # Connect to a known server and set a name up front
  lanchat --server 192.168.1.10:8080 --name alice

  # Jump straight into a room someone shared
  lanchat --server 192.168.1.10:8080 --name alice --room R_x81kq2`,
	Version: version.Version,
	RunE:    runChat,
}

func init() {
	rootCmd.Flags().StringVar(&serverAddr, "server", "", "Relay address host:port (empty = discover via mDNS)")
	rootCmd.Flags().StringVar(&userName, "name", "", "Display name to set after connecting")
	rootCmd.Flags().StringVar(&roomID, "room", "", "Room id to join after connecting")
	rootCmd.AddCommand(versionCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	// The chat screen takes over the terminal; refuse to start when
	// stdout is a pipe.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("lanchat is interactive and needs a terminal")
	}

	addr := serverAddr
	if addr == "" {
		found, err := discoverRelay(cmd.Context())
		if err != nil {
			return err
		}
		addr = found
		fmt.Printf("Found relay %s\n", addr)
	}

	conn, err := client.Dial(addr)
	if err != nil {
		return err
	}

	if userName != "" {
		if err := conn.SendCommand(wire.TypeSetUsername, map[string]string{"username": userName}); err != nil {
			_ = conn.Close()
			return err
		}
	}
	if roomID != "" {
		if err := conn.SendCommand(wire.TypeJoinRoom, map[string]string{"room_id": roomID}); err != nil {
			_ = conn.Close()
			return err
		}
	}

	return ui.Run(conn, addr)
}

// discoverRelay scans the LAN for an announced lanchat server.
func discoverRelay(ctx context.Context) (string, error) {
	peers, err := discovery.NewScanner().ScanForPeers(ctx)
	if err != nil {
		return "", fmt.Errorf("mDNS scan failed: %w", err)
	}
	if len(peers) == 0 {
		return "", fmt.Errorf("no lanchat relay found on the local network; pass --server host:port")
	}
	return fmt.Sprintf("%s:%d", peers[0].IP, peers[0].Port), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}
