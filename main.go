package main

import (
	"os"

	"github.com/armaan1620/tsh/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
