// Command pmsync syncs email templates between a directory and a Postmark server.
package main

import (
	"os"

	"github.com/opencode-ai/pmsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
