package main

import (
	"fmt"
)

// ---- Health Commands ----

func (c *CLI) healthCommand(args []string) error {
	resp, err := c.get("/healthz")
	if err != nil {
		return err
	}
	fmt.Println(string(resp))
	return nil
}
