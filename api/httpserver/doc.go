// Package httpserver provides the HTTP server the gateway binary runs on.
//
// The httpserver package implements a base HTTP server with standard health endpoints,
// graceful shutdown capabilities, metrics, and flexible routing. The protocol API and
// the distribution hub register their routes on it as RouteRegistrars.
//
// # Key Components
//
//   - BaseServer: Core HTTP server with health checks, metrics, and lifecycle management
//   - RouteRegistrar: Interface for components to register their routes with the server
//
// # Server Lifecycle
//
// The BaseServer implements a complete server lifecycle:
//
//  1. Initialization: Configure server with HTTP settings and route registrars
//  2. Startup: Run HTTP and metrics servers in background goroutines
//  3. Operation: Handle requests with proper logging and monitoring
//  4. Readiness Control: Support drain/undrain operations for load balancers
//     (handshakes are stateless, so a drained instance only has to finish
//     in-flight requests and event streams)
//  5. Graceful Shutdown: Wait for in-flight requests to complete
//
// # Health and Diagnostics
//
// All servers built with BaseServer automatically include:
//
//   - Liveness Check: Simple endpoint to verify server is running (/livez)
//   - Readiness Check: Endpoint indicating if server is ready to accept requests (/readyz)
//   - Drain Control: Endpoints to prepare for graceful shutdown (/drain, /undrain)
//   - Metrics: Optional Prometheus endpoint on a separate address (/metrics)
//   - Profiling: Optional pprof debugging endpoints when enabled
//
// # Usage Example
//
//	api := services.NewHandler(gate, services.HandlerConfig{Log: log})
//	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
//	    ListenAddr:               ":8080",
//	    MetricsAddr:              ":9090",
//	    Log:                      log,
//	    GracefulShutdownDuration: 30 * time.Second,
//	}, api, hub)
//	if err != nil {
//	    return err
//	}
//	errs := srv.RunInBackground()
//	select {
//	case <-ctx.Done():
//	case err := <-errs:
//	    log.Error("server stopped", "err", err)
//	}
//	return srv.Shutdown(context.Background())
package httpserver
