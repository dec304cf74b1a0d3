package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// ---- Tenant Commands ----

func (c *CLI) tenantCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: arx-cli tenant <subcommand>")
	}

	sub := args[0]
	args = args[1:]

	switch sub {
	case "list":
		return c.listTenants(args)
	case "create":
		return c.createTenant(args)
	case "deactivate":
		if len(args) < 1 {
			return fmt.Errorf("usage: arx-cli tenant deactivate <id>")
		}
		return c.deactivateTenant(args[0])
	default:
		return fmt.Errorf("unknown tenant subcommand: %s", sub)
	}
}

func (c *CLI) listTenants(args []string) error {
	opts := parseArgs(args)
	query := buildQuery(opts, "page", "limit")

	resp, err := c.get("/api/v1/admin/tenants" + query)
	if err != nil {
		return err
	}

	var tenants []struct {
		ID        string
		Name      string
		Domain    string
		Active    bool
		CreatedAt time.Time
	}
	if err := json.Unmarshal(resp, &tenants); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDOMAIN\tACTIVE\tCREATED")
	for _, t := range tenants {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			t.ID, t.Name, t.Domain, t.Active, t.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(tenants))
	return nil
}

func (c *CLI) createTenant(args []string) error {
	opts := parseArgs(args)
	name, ok := opts["name"]
	if !ok {
		return fmt.Errorf("--name is required")
	}

	body := map[string]string{"name": name}
	if dom, ok := opts["domain"]; ok {
		body["domain"] = dom
	}

	resp, err := c.post("/api/v1/admin/tenants", body)
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) deactivateTenant(id string) error {
	return c.delete("/api/v1/admin/tenants/"+id, nil)
}
