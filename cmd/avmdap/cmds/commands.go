// Package cmds builds the avmdap command tree, mirroring the teacher's
// cmd/dlv/cmds convention of one package-level New() constructing a cobra
// root command plus its subcommands.
package cmds

import (
	"fmt"
	"net"
	"os"

	"github.com/algorand/avm-replay-dap/internal/iohelp"
	"github.com/algorand/avm-replay-dap/pkg/logflags"
	"github.com/algorand/avm-replay-dap/service/dap"
	"github.com/spf13/cobra"
)

const adapterVersion = "0.1.0"

var (
	server    string
	logEnable bool
	logOutput string
	logDest   string
)

// New builds the avmdap root command: a "dap" subcommand that serves one DAP
// session, and a "version" subcommand.
func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "avmdap",
		Short: "Debug Adapter Protocol server for post-mortem replay of an AVM simulation trace.",
	}
	rootCommand.PersistentFlags().StringVar(&server, "server", "", "Listen on 127.0.0.1:<port> for one DAP session instead of using stdin/stdout.")
	rootCommand.PersistentFlags().BoolVar(&logEnable, "log", false, "Enable adapter logging.")
	rootCommand.PersistentFlags().StringVar(&logOutput, "log-output", "", "Comma separated list of components to log (dap,trace,sourcemap,state,cursor).")
	rootCommand.PersistentFlags().StringVar(&logDest, "log-dest", "", "File path or inherited file descriptor to write logs to.")

	dapCommand := &cobra.Command{
		Use:   "dap",
		Short: "Starts a DAP session replaying a frozen AVM simulation trace.",
		Long: `Starts a DAP session replaying a frozen AVM simulation trace.

Reads the simulation response and sources descriptor named by
ALGORAND_SIMULATION_RESPONSE_PATH and ALGORAND_TXN_GROUP_SOURCES_DESCRIPTION_PATH,
and serves exactly one DAP session, either over stdin/stdout or, with --server,
over a single accepted TCP connection.`,
		RunE: runDAP,
	}
	rootCommand.AddCommand(dapCommand)

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("avmdap %s\n", adapterVersion)
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func runDAP(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(logEnable, logOutput, logDest); err != nil {
		return err
	}

	simPath := os.Getenv("ALGORAND_SIMULATION_RESPONSE_PATH")
	sourcesPath := os.Getenv("ALGORAND_TXN_GROUP_SOURCES_DESCRIPTION_PATH")
	if simPath == "" || sourcesPath == "" {
		return fmt.Errorf("ALGORAND_SIMULATION_RESPONSE_PATH and ALGORAND_TXN_GROUP_SOURCES_DESCRIPTION_PATH must both be set")
	}

	opts := dap.Options{Reader: iohelp.OSReader{}}

	if server == "" {
		return dap.RunStdio(opts, os.Stdin, os.Stdout)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:"+server)
	if err != nil {
		return fmt.Errorf("couldn't start listener: %w", err)
	}
	srv := dap.NewServer(opts, listener)
	defer srv.Stop()
	srv.Run()
	return nil
}
