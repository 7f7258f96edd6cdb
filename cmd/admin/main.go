package main

import (
	"fmt"
	"os"

	"github.com/oksasatya/ngo-backoffice/cmd/admin/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
