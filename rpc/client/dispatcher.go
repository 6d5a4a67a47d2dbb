package client

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dRSC/rpc/common"
	"github.com/ValentinKolb/dRSC/rpc/serializer"
	"github.com/ValentinKolb/dRSC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

var clientLogger = logger.GetLogger(common.LoggerClient)

// DefaultTimeout bounds an exchange when Execute is called without a timeout
const DefaultTimeout = 10 * time.Second

// Dispatcher drives the request/response cycle of commands.
// It holds no connection state, one Dispatcher can serve any number of connections.
type Dispatcher struct{}

// NewDispatcher creates a new Dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Execute sends cmd on conn and parses the response.
// All I/O of the exchange has to complete within timeout, a timeout <= 0
// means DefaultTimeout. On failure conn is rolled back exactly once and the
// error of the failing step is returned as is.
func (d *Dispatcher) Execute(cmd ICommand, conn transport.IConnection, timeout time.Duration) (err error) {
	start := time.Now()
	defer func() {
		cmd.finish(err)
		observe(cmd.Name(), err, time.Since(start))
	}()

	if !conn.IsConnected() {
		return errors.Wrapf(common.ErrNotConnected, "cannot execute %s", cmd.Name())
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if err := d.exchange(cmd, conn, timeout); err != nil {
		clientLogger.Debugf("Command %s failed after %s: %v", cmd.Name(), time.Since(start), err)
		conn.Rollback()
		return err
	}

	// a lenient command may already have closed the stream
	if conn.IsConnected() {
		_ = conn.SetDeadline(time.Time{})
	}
	clientLogger.Debugf("Command %s completed in %s", cmd.Name(), time.Since(start))
	return nil
}

// exchange runs the steps of a single command, the caller handles failures
func (d *Dispatcher) exchange(cmd ICommand, conn transport.IConnection, timeout time.Duration) error {
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return common.WrapIOError(err, "set deadline")
	}

	header := serializer.NewCommandHeader(conn.Capabilities())
	body, err := cmd.BuildRequest(conn, header)
	if err != nil {
		return err
	}
	if header.DataLength != len(body) {
		return common.NewEncodingError("%s announces %d bytes but has a %d byte body", cmd.Name(), header.DataLength, len(body))
	}

	raw, err := header.Serialize()
	if err != nil {
		return err
	}
	if err := conn.Send(raw); err != nil {
		return err
	}
	if len(body) > 0 {
		if err := conn.Send(body); err != nil {
			return err
		}
	}
	if err := conn.WriteConfirmation(); err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return err
	}

	return cmd.ParseResponse(conn)
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// resultLabel classifies err for the command counter
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case common.IsPeerError(err):
		return "server_exception"
	case errors.Is(err, common.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, common.ErrTimeout):
		return "timeout"
	case errors.Is(err, common.ErrConnection):
		return "connection"
	case errors.Is(err, common.ErrEncoding):
		return "encoding"
	case errors.Is(err, common.ErrDecoding):
		return "decoding"
	default:
		return "error"
	}
}

func observe(command string, err error, took time.Duration) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`drsc_commands_total{command=%q,result=%q}`, command, resultLabel(err))).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`drsc_command_duration_seconds{command=%q}`, command)).Update(took.Seconds())
}
