package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "hash-password":
		err = runHashPassword(os.Args[2:])
	case "version":
		fmt.Printf("folio %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`folio - A portfolio and blog site built with Go, Echo, and templ

Usage:
  folio <command> [arguments]

Commands:
  serve                     Run the web server
  import -kind <kind>       Import posts or projects from a profile document
  hash-password <password>  Print a bcrypt hash for AUTH_ACCOUNTS
  version                   Print the folio version
  help                      Show this help message

Examples:
  folio serve
  folio import -kind projects -file thongtin.md
  folio import -kind posts -from https://raw.githubusercontent.com/user/user/main/thongtin.md`)
}
