// Package discovery advertises and locates lanchat servers on the local
// network over mDNS.
//
// A running server announces itself as an "_lanchat._tcp" service in the
// "local." domain. The /peers endpoint and the TUI client use the Scanner
// to find other instances without any configuration; this replaces the
// ARP-table scraping a LAN tool would otherwise resort to.
//
// The package also exposes LocalIP, the address the server embeds in the
// URLs it hands to clients.
package discovery
