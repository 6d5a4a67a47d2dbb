package rsc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/dRSC/rpc/client"
	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/server"
	"github.com/ValentinKolb/dRSC/rpc/transport/tcp"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/viper"
)

// TestCloseSessionAfterFailedCommand tests that the session is ended and the
// metrics are written although the subcommand failed
func TestCloseSessionAfterFailedCommand(t *testing.T) {
	device, err := server.NewDeviceServer(common.ServerConfig{
		Endpoint:    "127.0.0.1:0",
		DataTagging: true,
		Providers:   map[string][]string{"Arp.Plc.Domain": {"Arp.Plc.Domain.Services.IPlcManagerService"}},
	}, tcp.NewTCPDefaultServerTransport())
	if err != nil {
		t.Fatalf("Failed to create device: %v", err)
	}
	if err := device.Start(); err != nil {
		t.Fatalf("Failed to start device: %v", err)
	}
	defer device.Close()

	config := common.DefaultClientConfig()
	config.Endpoint = device.Addr()
	session = client.NewSession(config, tcp.NewTCPConnection(config))
	if err := session.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	current := session

	disconnects := metrics.GetOrCreateCounter(`drsc_server_requests_total{command="disconnect"}`)
	before := disconnects.Get()

	if err := providerCmd.RunE(providerCmd, []string{"Arp.Unknown"}); err == nil {
		t.Fatalf("Expected the lookup of an unknown provider to fail")
	}

	viper.Set("metrics", true)
	defer viper.Set("metrics", false)

	var buf bytes.Buffer
	if err := closeSession(&buf); err != nil {
		t.Fatalf("closeSession failed: %v", err)
	}

	if session != nil {
		t.Errorf("Expected the session to be released")
	}
	if disconnects.Get() != before+1 {
		t.Errorf("Expected one disconnect request, got %d", disconnects.Get()-before)
	}
	if !strings.Contains(buf.String(), "drsc_commands_total") {
		t.Errorf("Expected metrics output, got %q", buf.String())
	}
	if err := current.Connect(); err == nil {
		t.Errorf("Closed session must not connect again")
	}

	// without a session there is nothing to do
	if err := closeSession(&buf); err != nil {
		t.Errorf("closeSession without session failed: %v", err)
	}
}
