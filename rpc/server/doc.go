// Package server implements a simulated RSC device.
//
// The simulator answers the RSC commands over any server transport of the
// transport package. It is used by the tests of the client package and by
// the `drsc serve` command to try clients without real hardware.
//
// Key Components:
//
//   - Registry: resolves provider names, service names and method handles.
//     Providers can be moved to a new handle at runtime, the old handle keeps
//     resolving so clients notice the move on their next service lookup.
//
//   - IRSCServerAdapter: Interface for the component answering request
//     frames. NewRSCServerAdapter creates the adapter negotiating
//     capabilities, resolving handles and invoking methods. Failures are
//     answered with exception frames.
//
//   - NewDeviceServer: Factory function creating a simulator with the
//     providers and services of the configuration. Every service offers
//     EchoMethod, further methods are installed with Registry.RegisterMethod.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:        "127.0.0.1:41100",
//	  RemotingVersion: common.RemotingVersionRecent,
//	  DataTagging:     true,
//	  Providers: map[string][]string{
//	    "Arp.Plc.Domain": {"Arp.Plc.Domain.Services.IPlcManagerService"},
//	  },
//	}
//
//	s, _ := server.NewDeviceServer(config, tcp.NewTCPDefaultServerTransport())
//	_ = s.Start()
//	defer s.Close()
//
// Metrics:
//
// Requests are counted per command type in drsc_server_requests_total and
// exceptions per error code in drsc_server_exceptions_total.
package server
