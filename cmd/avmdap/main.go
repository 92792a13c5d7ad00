// Command avmdap is a Debug Adapter Protocol server that replays a frozen
// AVM transaction-group simulation trace for an IDE, modeled on delve's
// `dlv` bootstrap (cmd/dlv/main.go delegating to cmd/dlv/cmds.New()).
package main

import (
	"fmt"
	"os"

	"github.com/algorand/avm-replay-dap/cmd/avmdap/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
