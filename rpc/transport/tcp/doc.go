// Package tcp implements TCP socket based connectors for the RSC transport.
// It provides concrete implementations of the base package's connector
// interfaces and applies the socket options from common.TCPConf and
// common.SocketConf to every dialed or accepted connection.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector,
//     used through NewTCPConnection
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector,
//     used by the device simulator
//
// The default server buffer size is 64 KB.
package tcp
