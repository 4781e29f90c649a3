package main

import (
	"github.com/oneconcern/globalrefdb/cmd/refdb/cmd"
)

func main() {
	cmd.Execute()
}
