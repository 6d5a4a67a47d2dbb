package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dRSC/cmd/rsc"
	"github.com/ValentinKolb/dRSC/cmd/serve"
	"github.com/ValentinKolb/dRSC/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "drsc",
		Short: "RSC remoting client and device simulator",
		Long: fmt.Sprintf(`dRSC (v%s)

A client for the RSC binary remoting protocol written in Go,
with a device simulator to test against.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dRSC",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dRSC v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(rsc.RSCCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
