// Package client implements the command side of the RSC protocol.
//
// Every exchange with a device is a command: a request header and body
// followed by a confirmation or an exception frame. The package provides:
//
//   - ICommand and its variants Connect, Disconnect, GetServiceProviderHandle,
//     GetServiceExtRequest and Invoke. Each command builds its request and
//     parses its response, result fields stay unset until the response was
//     consumed completely.
//
//   - Dispatcher, the single place that runs an exchange. It bounds the
//     exchange with a timeout and rolls the connection back exactly once when
//     any step fails. The error of the failing step is returned unchanged so
//     callers can classify it with errors.Is against the sentinels in package
//     common, or check for a *common.ServerException.
//
//   - Session, a concurrency safe client for one device. It caches resolved
//     provider and service handles, follows providers the device moved to a
//     new handle and keeps an idle channel alive.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	config.Endpoint = "192.168.1.10:41100"
//
//	session := client.NewSession(config, tcp.NewTCPConnection(config))
//	if err := session.Connect(); err != nil {
//	  return err
//	}
//	defer session.Close()
//
//	result, err := session.Invoke("Arp.Plc.Domain", "Arp.Plc.Domain.Services.IPlcManagerService", 1, nil)
//
// Using the Dispatcher directly:
//
//	conn := tcp.NewTCPConnection(config)
//	_ = conn.Connect(config.Endpoint)
//
//	d := client.NewDispatcher()
//	_ = d.Execute(client.NewConnect(true, false), conn, 5*time.Second)
//
//	lookup := client.NewGetServiceProviderHandle("Arp.Plc.Domain")
//	if err := d.Execute(lookup, conn, 5*time.Second); err != nil {
//	  return err
//	}
//	fmt.Println(lookup.ProviderHandle)
//
// Neither Dispatcher nor the connection lock anything, concurrent callers
// either share a Session or serialize access themselves.
package client
