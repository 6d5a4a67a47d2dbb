package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/dRSC/rpc/client"
	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/transport"
	"github.com/ValentinKolb/dRSC/rpc/transport/tcp"
	"github.com/ValentinKolb/dRSC/rpc/transport/unix"
	"github.com/VictoriaMetrics/metrics"
	"github.com/joho/godotenv"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRSCClientFlags adds the flags of an RSC session to a command
func SetupRSCClientFlags(cmd *cobra.Command) {
	defaults := common.DefaultClientConfig()

	key := "endpoint"
	cmd.PersistentFlags().String(key, defaults.Endpoint, WrapString("The address of the device (host:port for tcp, socket path for unix)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, defaults.TimeoutSecond, WrapString("The timeout of a single exchange in seconds"))

	key = "keepalive"
	cmd.PersistentFlags().Int(key, defaults.KeepAliveMs, WrapString("Renew an idle channel after this many milliseconds (0 disables keep-alive)"))

	key = "keepalive-provider"
	cmd.PersistentFlags().String(key, defaults.KeepAliveProvider, WrapString("The provider looked up to keep the channel alive"))

	key = "strict-lookup"
	cmd.PersistentFlags().Bool(key, defaults.StrictLookup, WrapString("Fail provider lookups on malformed responses instead of only logging them"))

	key = "data-tagging"
	cmd.PersistentFlags().Bool(key, defaults.RequestDataTagging, WrapString("Request data tagging when connecting"))

	key = "datagramming"
	cmd.PersistentFlags().Bool(key, defaults.RequestDatagramming, WrapString("Request datagramming when connecting"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 8, WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 8, WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, defaults.Transport.TCPNoDelay, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the collected metrics in Prometheus text format after the command"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("drsc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:            viper.GetString("endpoint"),
		TimeoutSecond:       viper.GetInt("timeout"),
		KeepAliveMs:         viper.GetInt("keepalive"),
		KeepAliveProvider:   viper.GetString("keepalive-provider"),
		StrictLookup:        viper.GetBool("strict-lookup"),
		RequestDataTagging:  viper.GetBool("data-tagging"),
		RequestDatagramming: viper.GetBool("datagramming"),
		Transport: common.TransportConfig{
			Name: viper.GetString("transport"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
		LogLevel: viper.GetString("log-level"),
	}
}

// GetConnection creates a not yet connected stream for the configured transport
func GetConnection(config common.ClientConfig) (client.IStream, error) {
	switch config.Transport.Name {
	case "tcp":
		return tcp.NewTCPConnection(config), nil
	case "unix":
		return unix.NewUnixConnection(config), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", config.Transport.Name)
	}
}

// GetServerTransport creates the server transport for the configured transport name
func GetServerTransport(name string, bufferSize int) (transport.IRPCServerTransport, error) {
	switch name {
	case "tcp":
		return tcp.NewTCPServerTransport(bufferSize), nil
	case "unix":
		return unix.NewUnixServerTransport(bufferSize), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// WriteMetrics writes the command metrics and the transport counters in Prometheus text format
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)

	gometrics.DefaultRegistry.Each(func(name string, i interface{}) {
		name = strings.ReplaceAll(name, ".", "_")
		switch metric := i.(type) {
		case gometrics.Counter:
			fmt.Fprintf(w, "%s %d\n", name, metric.Count())
		case gometrics.Gauge:
			fmt.Fprintf(w, "%s %d\n", name, metric.Value())
		}
	})
}
