// Package cli provides the interactive MindVault account command-line client.
//
// It wires configuration, the local session database, the HTTP API client
// and an interactive REPL. A background watcher probes the server and
// switches the prompt between online and offline.
//
// Commands:
//   - register, verify, resend, status
//   - login, logout, whoami
//   - profile, rename, passwd
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
