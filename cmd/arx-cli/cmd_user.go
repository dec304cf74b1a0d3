package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// ---- User Commands ----

func (c *CLI) userCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: arx-cli user <subcommand>")
	}

	sub := args[0]
	args = args[1:]

	switch sub {
	case "list":
		return c.listUsers(args)
	case "get":
		if len(args) < 1 {
			return fmt.Errorf("usage: arx-cli user get <id>")
		}
		return c.getUser(args[0])
	case "set-role":
		if len(args) < 1 {
			return fmt.Errorf("usage: arx-cli user set-role <id> --role=ROLE")
		}
		return c.setUserRole(args[0], args[1:])
	case "deactivate":
		if len(args) < 1 {
			return fmt.Errorf("usage: arx-cli user deactivate <id>")
		}
		return c.deactivateUser(args[0])
	default:
		return fmt.Errorf("unknown user subcommand: %s", sub)
	}
}

func (c *CLI) listUsers(args []string) error {
	opts := parseArgs(args)
	query := buildQuery(opts, "page", "limit")

	resp, err := c.get("/api/v1/admin/users" + query)
	if err != nil {
		return err
	}

	var users []struct {
		ID            string    `json:"id"`
		Email         string    `json:"email"`
		Role          string    `json:"role"`
		Active        bool      `json:"active"`
		EmailVerified bool      `json:"email_verified"`
		CreatedAt     time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(resp, &users); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tACTIVE\tVERIFIED\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n",
			u.ID, u.Email, u.Role, u.Active, u.EmailVerified, u.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(users))
	return nil
}

func (c *CLI) getUser(id string) error {
	resp, err := c.get("/api/v1/admin/users/" + id)
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) setUserRole(id string, args []string) error {
	opts := parseArgs(args)
	role, ok := opts["role"]
	if !ok {
		return fmt.Errorf("--role is required")
	}

	resp, err := c.put("/api/v1/admin/users/"+id+"/role", map[string]string{"role": role})
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}

func (c *CLI) deactivateUser(id string) error {
	return c.delete("/api/v1/admin/users/"+id, nil)
}
