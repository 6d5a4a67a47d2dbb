package rsc

import (
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/dRSC/cmd/util"
	"github.com/ValentinKolb/dRSC/rpc/client"
	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	session *client.Session

	// RSCCommands represents the rsc command group
	RSCCommands = &cobra.Command{
		Use:                "rsc",
		Short:              "Talk to an RSC device",
		Long:               `Open a session to an RSC device, run a single command and close the session again. The configuration can be set via command line flags or environment variables. The format of the environment variables is DRSC_<flag> (e.g. DRSC_ENDPOINT=192.168.1.10:41100)`,
		PersistentPreRunE: setupSession,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// runs after failing subcommands too, unlike the post run hooks
	cobra.OnFinalize(func() {
		if err := closeSession(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing session: %v\n", err)
		}
	})

	// Add common RSC flags to the rsc command
	util.SetupRSCClientFlags(RSCCommands)

	// Add subcommands
	RSCCommands.AddCommand(connectCmd)
	RSCCommands.AddCommand(providerCmd)
	RSCCommands.AddCommand(serviceCmd)
	RSCCommands.AddCommand(invokeCmd)
	RSCCommands.AddCommand(perfTestCmd)
}

// setupSession connects the session used by the subcommands
func setupSession(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return err
	}

	conn, err := util.GetConnection(*config)
	if err != nil {
		return err
	}

	session = client.NewSession(*config, conn)
	return session.Connect()
}

// closeSession ends the session and writes the metrics to w if requested.
// Without an open session it does nothing.
func closeSession(w io.Writer) error {
	if session == nil {
		return nil
	}
	err := session.Close()
	session = nil
	if viper.GetBool("metrics") {
		util.WriteMetrics(w)
	}
	return err
}
