package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli"

	"ledgerlib/internal/catalog"
)

func printJson(handle io.Writer, message interface{}) error {
	b, err := json.MarshalIndent(message, "", "  ")
	if nil != err {
		return err
	}
	fmt.Fprintf(handle, "%s\n", b)
	return nil
}

// fail turns catalog errors into exit errors carrying the catalog code, so
// scripts can tell not-found from not-available.
func fail(err error) error {
	if code := catalog.Code(err); code != 0 {
		return cli.NewExitError(err.Error(), code)
	}
	return err
}

func argID(c *cli.Context) (uint32, error) {
	arg := c.Args().First()
	if "" == arg {
		return 0, fmt.Errorf("item id is required")
	}
	id, err := strconv.ParseUint(arg, 10, 32)
	if nil != err {
		return 0, fmt.Errorf("invalid item id: %q", arg)
	}
	return uint32(id), nil
}

func runAdd(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	title := c.String("title")
	owner := c.String("owner")
	if m.verbose {
		fmt.Fprintf(m.e, "title: %s\n", title)
		fmt.Fprintf(m.e, "owner: %s\n", owner)
	}

	id, err := m.client.CreateItem(context.Background(), title, owner)
	if nil != err {
		return fail(err)
	}
	return printJson(m.w, map[string]uint32{"id": id})
}

func runGet(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	id, err := argID(c)
	if nil != err {
		return err
	}
	item, ok, err := m.client.GetItem(context.Background(), id)
	if nil != err {
		return fail(err)
	}
	if !ok {
		return fail(catalog.ErrNotFound)
	}
	return printJson(m.w, item)
}

func runList(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	var (
		items []catalog.Item
		err   error
	)
	if c.Bool("available") {
		items, err = m.client.ListAvailable(context.Background())
	} else {
		items, err = m.client.ListAll(context.Background())
	}
	if nil != err {
		return fail(err)
	}
	return printJson(m.w, items)
}

func runLoan(c *cli.Context) error {
	return transition(c, "loaned", func(ctx context.Context, m *metadata, id uint32) error {
		return m.client.Loan(ctx, id)
	})
}

func runReturn(c *cli.Context) error {
	return transition(c, "available", func(ctx context.Context, m *metadata, id uint32) error {
		return m.client.ReturnItem(ctx, id)
	})
}

func runReserve(c *cli.Context) error {
	return transition(c, "reserved", func(ctx context.Context, m *metadata, id uint32) error {
		return m.client.Reserve(ctx, id)
	})
}

func transition(c *cli.Context, result string, op func(context.Context, *metadata, uint32) error) error {
	m := c.App.Metadata["config"].(*metadata)

	id, err := argID(c)
	if nil != err {
		return err
	}
	if err := op(context.Background(), m, id); nil != err {
		return fail(err)
	}
	return printJson(m.w, map[string]interface{}{"id": id, "status": result})
}

func runStatus(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	id, err := argID(c)
	if nil != err {
		return err
	}
	status, err := catalog.ParseStatus(c.Args().Get(1))
	if nil != err {
		return fail(fmt.Errorf("status %q: %w", c.Args().Get(1), err))
	}
	if err := m.client.SetStatus(context.Background(), id, status); nil != err {
		return fail(err)
	}
	return printJson(m.w, map[string]interface{}{"id": id, "status": status})
}

func runHistory(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	id, err := argID(c)
	if nil != err {
		return err
	}
	events, err := m.client.History(context.Background(), id)
	if nil != err {
		return fail(err)
	}
	return printJson(m.w, events)
}
