package main

import (
	"fmt"
)

// ---- Policy Commands ----

func (c *CLI) policyCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: arx-cli policy <subcommand>")
	}

	sub := args[0]
	args = args[1:]

	switch sub {
	case "grant":
		return c.grantPermit(args)
	case "revoke":
		return c.revokePermit(args)
	case "link-role":
		return c.linkRole(args, true)
	case "unlink-role":
		return c.linkRole(args, false)
	case "group-resource":
		return c.groupResource(args)
	case "permissions":
		return c.listPermissions()
	default:
		return fmt.Errorf("unknown policy subcommand: %s", sub)
	}
}

func permitBody(args []string) (map[string]string, error) {
	opts := parseArgs(args)
	for _, k := range []string{"subject", "resource", "action"} {
		if _, ok := opts[k]; !ok {
			return nil, fmt.Errorf("--%s is required", k)
		}
	}
	return map[string]string{
		"subject":  opts["subject"],
		"resource": opts["resource"],
		"action":   opts["action"],
	}, nil
}

func (c *CLI) grantPermit(args []string) error {
	body, err := permitBody(args)
	if err != nil {
		return err
	}
	if _, err := c.post("/api/v1/admin/permits", body); err != nil {
		return err
	}
	fmt.Println("Granted")
	return nil
}

func (c *CLI) revokePermit(args []string) error {
	body, err := permitBody(args)
	if err != nil {
		return err
	}
	return c.delete("/api/v1/admin/permits", body)
}

func linkBody(args []string) (map[string]string, error) {
	opts := parseArgs(args)
	for _, k := range []string{"child", "parent"} {
		if _, ok := opts[k]; !ok {
			return nil, fmt.Errorf("--%s is required", k)
		}
	}
	return map[string]string{"child": opts["child"], "parent": opts["parent"]}, nil
}

func (c *CLI) linkRole(args []string, add bool) error {
	body, err := linkBody(args)
	if err != nil {
		return err
	}
	if !add {
		return c.delete("/api/v1/admin/role-links", body)
	}
	if _, err := c.post("/api/v1/admin/role-links", body); err != nil {
		return err
	}
	fmt.Println("Linked")
	return nil
}

func (c *CLI) groupResource(args []string) error {
	body, err := linkBody(args)
	if err != nil {
		return err
	}
	if _, err := c.post("/api/v1/admin/resource-links", body); err != nil {
		return err
	}
	fmt.Println("Grouped")
	return nil
}

func (c *CLI) listPermissions() error {
	resp, err := c.get("/api/v1/admin/permissions")
	if err != nil {
		return err
	}
	return prettyPrint(resp)
}
