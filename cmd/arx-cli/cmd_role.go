package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// ---- Role Commands ----

func (c *CLI) roleCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: arx-cli role <subcommand>")
	}

	sub := args[0]
	args = args[1:]

	switch sub {
	case "list":
		return c.listRoles()
	case "create":
		return c.createRole(args)
	case "deactivate":
		if len(args) < 1 {
			return fmt.Errorf("usage: arx-cli role deactivate <name>")
		}
		return c.deactivateRole(args[0])
	default:
		return fmt.Errorf("unknown role subcommand: %s", sub)
	}
}

func (c *CLI) listRoles() error {
	resp, err := c.get("/api/v1/admin/roles")
	if err != nil {
		return err
	}

	var roles []struct {
		ID        string
		Name      string
		Active    bool
		CreatedAt time.Time
	}
	if err := json.Unmarshal(resp, &roles); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tCREATED")
	for _, r := range roles {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.ID, r.Name, r.Active, r.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
	return nil
}

func (c *CLI) createRole(args []string) error {
	opts := parseArgs(args)
	name, ok := opts["name"]
	if !ok {
		return fmt.Errorf("--name is required")
	}

	resp, err := c.post("/api/v1/admin/roles", map[string]string{"name": name})
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) deactivateRole(name string) error {
	return c.delete("/api/v1/admin/roles/"+name, nil)
}
