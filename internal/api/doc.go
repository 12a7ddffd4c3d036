// Package api serves the rpihome methods over HTTP.
//
// Every method is a dispatch.JSON handler registered by name; the path
// minus its leading slash selects the method. Protected methods check the
// configured shared key, read from the payload "key" field or the
// Protected-Key header. State changes are published on the events bus.
//
// The server follows the same lifecycle as the other components:
//
//	srv, err := api.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
package api
