// Package broker composes the buffer table and the topic registry into the
// shared-memory broker service.
//
// Payloads never pass through the broker. A producer creates a named buffer,
// writes into it from its own mapping and publishes the buffer name on a topic.
// Every subscriber of the topic receives a delivery record naming the same
// buffer, and the buffer stays alive until every holder has released it.
//
//	svc, err := broker.NewFromConfig(cfg, shm.NewPosixAllocator(), broker.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	name, _ := svc.CreateBuffer(ctx, 4096)
//	// ... map name, write the payload ...
//	_, err = svc.Publish(ctx, "frames", topic.Record{BufferID: name, Timestamp: ts})
//	_ = svc.ReleaseBuffer(ctx, name) // drop the creator's hold
//
// # Reference counting
//
// CreateBuffer hands the creator one reference. Publish adds one reference per
// subscriber in the same critical section that enqueues the records, so a
// subscriber never pulls a record whose buffer is already gone. Each consumer
// releases its reference once it is done with the payload. Records dropped by
// queue overflow have their reference released by the broker.
//
// # Result codes
//
// ResultCode and ErrorFromCode translate between the error taxonomy of this
// package and the integer result codes carried by the control plane.
package broker
