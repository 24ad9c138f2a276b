// cmd/catalogctl/main.go
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"

	"ledgerlib/internal/clients"
)

type metadata struct {
	client  *clients.CatalogClient
	verbose bool
	e       io.Writer
	w       io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero"

func main() {
	app := newApp(os.Stdout, os.Stderr)
	err := app.Run(os.Args)
	if nil != err {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}

func newApp(w, e io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "catalogctl"
	app.Usage = "manage items in a catalog service"
	app.Version = version
	app.HideVersion = true

	app.Writer = w
	app.ErrWriter = e

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:   "url, u",
			Value:  "http://localhost:8081",
			Usage:  " catalog service base `URL`",
			EnvVar: "CATALOG_SERVICE_URL",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "add",
			Usage:     "add a new item, printing its id",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "title, t",
					Value: "",
					Usage: "*item title `STRING`",
				},
				cli.StringFlag{
					Name:  "owner, o",
					Value: "",
					Usage: "*item owner `STRING`",
				},
			},
			Action: runAdd,
		},
		{
			Name:      "get",
			Usage:     "show one item",
			ArgsUsage: "ID",
			Action:    runGet,
		},
		{
			Name:  "list",
			Usage: "list items in id order",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "available, a",
					Usage: " only items that can be loaned",
				},
			},
			Action: runList,
		},
		{
			Name:      "loan",
			Usage:     "loan an available item",
			ArgsUsage: "ID",
			Action:    runLoan,
		},
		{
			Name:      "return",
			Usage:     "return a loaned item",
			ArgsUsage: "ID",
			Action:    runReturn,
		},
		{
			Name:      "reserve",
			Usage:     "reserve an available item",
			ArgsUsage: "ID",
			Action:    runReserve,
		},
		{
			Name:      "status",
			Usage:     "overwrite the status of an item",
			ArgsUsage: "ID STATUS\n   STATUS is one of available|loaned|reserved",
			Action:    runStatus,
		},
		{
			Name:      "history",
			Usage:     "show the events recorded for an item",
			ArgsUsage: "ID",
			Action:    runHistory,
		},
	}

	app.Before = func(c *cli.Context) error {
		url := c.GlobalString("url")
		if "" == url {
			return fmt.Errorf("catalog service url is required")
		}
		if c.GlobalBool("verbose") {
			fmt.Fprintf(c.App.ErrWriter, "url: %s\n", url)
		}
		c.App.Metadata["config"] = &metadata{
			client:  clients.NewCatalogClient(url),
			verbose: c.GlobalBool("verbose"),
			e:       c.App.ErrWriter,
			w:       c.App.Writer,
		}
		return nil
	}

	return app
}
