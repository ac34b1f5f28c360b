// Command catalogctl manages the product catalog from a terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Skotchmaster/catalog_admin/pkg/client"
	"github.com/Skotchmaster/catalog_admin/pkg/config"
)

const usage = `usage: catalogctl [-server URL] [-session FILE] <command> [args]

commands:
  signup -name NAME -email EMAIL
  login -email EMAIL
  logout
  whoami
  list
  get ID
  create -title T -price P -category C [-description D] [-image URL] [-in-stock=false]
  update ID [-title T] [-price P] [-category C] [-description D] [-image URL] [-in-stock=BOOL]
  delete ID
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	client *client.Client
	out    io.Writer
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("catalogctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	server := fs.String("server", config.EnvDefault("CATALOG_URL", "http://localhost:8080"), "catalog server base url")
	sessionPath := fs.String("session", config.EnvDefault("CATALOG_SESSION", client.DefaultSessionPath()), "session file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	store := client.NewFileStore(*sessionPath)
	sess := client.NewSession()
	if err := sess.Restore(store); err != nil {
		return err
	}
	c := client.NewClient(*server, sess)
	c.Store = store

	a := &app{client: c, out: stdout}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "signup":
		return a.signup(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout()
	case "whoami":
		return a.whoami()
	case "list":
		return a.list(ctx)
	case "get":
		return a.get(ctx, rest)
	case "create":
		return a.create(ctx, rest)
	case "update":
		return a.update(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
