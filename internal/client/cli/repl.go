package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Verify(ctx context.Context, token string) error
	Resend(ctx context.Context) error
	Status(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Profile(ctx context.Context) error
	Rename(ctx context.Context) error
	ChangePassword(ctx context.Context) error
}

// runREPL reads commands from scanner until EOF, "exit" or "quit".
// Command errors are reported and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("mv (%s)> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, profile, rename, passwd, logout, exit")
			} else {
				printlnFn("Available commands: register, verify <token>, resend, status, login, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "verify":
			if len(args) != 1 {
				printlnFn("Usage: verify <token>")
				continue
			}
			err = a.Verify(ctx, args[0])

		case "resend":
			err = a.Resend(ctx)

		case "status":
			err = a.Status(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "whoami":
			err = a.Whoami(ctx)

		case "profile":
			err = a.Profile(ctx)

		case "rename":
			err = a.Rename(ctx)

		case "passwd":
			err = a.ChangePassword(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", describe(err))
		}
	}
}
