package main

import (
	"os"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/taxbot/core"
)

func main() {
	config := core.NewCliConfig()
	rc, err := core.Cli(os.Args[1:], config)
	Ck(err)
	os.Exit(rc)
}
