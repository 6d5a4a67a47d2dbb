package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/dRSC/cmd/util"
	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the RSC device simulator",
		Long:    `Start a simulated RSC device with the specified providers and services. Every service answers the echo method. The configuration can be set via command line flags or environment variables. The format of the environment variables is DRSC_<flag> (e.g. DRSC_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "providers"
	ServeCmd.PersistentFlags().String(key, "Arp.Plc.Domain=Arp.Plc.Domain.Services.IPlcManagerService", cmdUtil.WrapString("Comma-separated list of providers to serve. Format: PROVIDER=SERVICE;SERVICE,... (e.g. 'Arp.Plc.Domain=Arp.Plc.Domain.Services.IPlcManagerService;Arp.Plc.Domain.Services.IPlcInfoService')"))

	key = "remoting-version"
	ServeCmd.PersistentFlags().Uint8(key, common.RemotingVersionRecent, cmdUtil.WrapString("The remoting version granted to clients"))

	key = "data-tagging"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Grant data tagging to clients requesting it"))

	key = "datagramming"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Grant datagramming to clients requesting it"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read and write deadline of an exchange in seconds (0 disables it)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:41100", cmdUtil.WrapString("The address on which the device will listen (e.g. 0.0.0.0:41100, /tmp/drsc.sock, ...)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The size of the read and write buffers of a connection (in KB)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	providers, err := parseProviders(viper.GetString("providers"))
	if err != nil {
		return err
	}
	serveCmdConfig.Providers = providers

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RemotingVersion = uint8(viper.GetUint("remoting-version"))
	serveCmdConfig.DataTagging = viper.GetBool("data-tagging")
	serveCmdConfig.Datagramming = viper.GetBool("datagramming")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.TransportConfig{
		Name:    viper.GetString("transport"),
		TCPConf: common.TCPConf{TCPNoDelay: true},
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// parseProviders parses the PROVIDER=SERVICE;SERVICE,... format
func parseProviders(value string) (map[string][]string, error) {
	providers := make(map[string][]string)
	for _, providerConfig := range strings.Split(value, ",") {
		if strings.TrimSpace(providerConfig) == "" {
			continue
		}

		parts := strings.SplitN(providerConfig, "=", 2)
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("invalid provider format: %s (expected PROVIDER=SERVICE;SERVICE)", providerConfig)
		}
		if _, ok := providers[name]; ok {
			return nil, fmt.Errorf("provider %s listed twice", name)
		}

		services := make([]string, 0)
		if len(parts) == 2 {
			for _, service := range strings.Split(parts[1], ";") {
				if service = strings.TrimSpace(service); service != "" {
					services = append(services, service)
				}
			}
		}
		providers[name] = services
	}
	return providers, nil
}

// run starts the device simulator
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport(serveCmdConfig.Transport.Name, viper.GetInt("buffer-size")*1024)
	if err != nil {
		return err
	}

	serv, err := server.NewDeviceServer(*serveCmdConfig, t)
	if err != nil {
		return err
	}

	return serv.Serve()
}

// initConfig reads in ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("drsc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
