// Package server hosts the broker control plane over HTTP with graceful
// shutdown and errgroup-friendly lifecycle helpers.
//
// Control-plane connections are hijacked websockets that http.Server does not
// track, so the write timeout is disabled by default and owners of such
// connections close them from a shutdown hook.
//
//	srv, err := server.NewFromConfig(cfg.Server,
//		server.WithLogger(log),
//		server.WithShutdownHook(handler.CloseConnections),
//	)
//	if err != nil {
//		return err
//	}
//
//	eg, ctx := errgroup.WithContext(ctx)
//	eg.Go(srv.Run(ctx, handler))
//	return eg.Wait()
package server
