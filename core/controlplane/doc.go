// Package controlplane carries broker requests between client processes and
// the broker over a websocket.
//
// Each client holds one connection to /rpc and sends JSON Request frames. The
// server answers every request with a Response carrying the same id; requests
// are served concurrently, so a blocked Pull does not hold up other calls on
// the same connection. When a connection drops, the requests still running on
// its behalf are canceled.
//
// Every result carries a result code, see broker.ResultCode. The Client turns
// codes back into broker errors:
//
//	c, err := controlplane.Dial(ctx, "ws://127.0.0.1:50051/rpc")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	rec, err := c.Pull(ctx, "frames", "render", time.Second)
//	if errors.Is(err, broker.ErrTimeout) {
//		// nothing published yet
//	}
//
// Buffers are mapped directly from shared memory with MapBuffer; payload bytes
// never travel over the control plane.
package controlplane
