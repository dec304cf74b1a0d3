package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// Version is set at build time
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cli := &CLI{
		BaseURL: getEnv("ARX_URL", "http://localhost:8080"),
		Token:   os.Getenv("ARX_TOKEN"),
		Tenant:  os.Getenv("ARX_TENANT"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}

	var err error
	switch cmd {
	case "user", "users":
		err = cli.userCommand(args)
	case "tenant", "tenants":
		err = cli.tenantCommand(args)
	case "role", "roles":
		err = cli.roleCommand(args)
	case "policy":
		err = cli.policyCommand(args)
	case "audit":
		err = cli.auditCommand(args)
	case "health":
		err = cli.healthCommand(args)
	case "version":
		fmt.Printf("arx-cli %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`arx-cli - Arx Identity Backend Command Line Interface

Usage:
  arx-cli <command> [subcommand] [options]

Environment Variables:
  ARX_URL     Base URL of the Arx server (default: http://localhost:8080)
  ARX_TOKEN   Admin access token
  ARX_TENANT  Tenant ID sent as X-Tenant-ID

Commands:
  user      Manage users
    list        [--page=N] [--limit=N]
    get         <id>
    set-role    <id> --role=ROLE
    deactivate  <id>

  tenant    Manage tenants
    list        [--page=N] [--limit=N]
    create      --name=NAME [--domain=DOMAIN]
    deactivate  <id>

  role      Manage roles
    list        List roles in the tenant
    create      --name=NAME
    deactivate  <name>

  policy    Manage access rules
    grant          --subject=S --resource=R --action=A
    revoke         --subject=S --resource=R --action=A
    link-role      --child=ROLE --parent=ROLE
    unlink-role    --child=ROLE --parent=ROLE
    group-resource --child=R --parent=R
    permissions    List registered permissions

  audit     Query audit events
    query   [--actor=ID] [--type=TYPE] [--page=N] [--limit=N]

  health    Check server health

  version   Show CLI version
  help      Show this help
`)
}
