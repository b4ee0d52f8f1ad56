package main

import (
	"github.com/kmorell/pfscan/cmd/pfscan/commands"
)

func main() {
	commands.Execute()
}
