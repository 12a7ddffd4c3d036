// Package dispatch maps named methods to typed JSON handlers.
//
// A method is a single string resolved from the Server-Method header or,
// when the header is absent, from the request path with its leading "/"
// removed. Each method binds up to one handler per verb (GET, POST, PUT,
// DELETE). Handlers built with JSON decode the body into a typed input,
// optionally check a shared protected key, and encode a typed output.
//
// Errors returned by handlers are folded into a small taxonomy (see
// Classify) and rendered with a fixed status and body per kind. Only
// LogicError values reach the client with detail, as {"code":N}.
//
// Usage:
//
//	reg := dispatch.NewRegistry(1 << 20)
//	reg.Register(dispatch.NewRequestHandler("echo").
//	    Post(dispatch.JSON[EchoInput, EchoOutput](echoHandler)))
//	http.ListenAndServe(":8080", reg)
package dispatch
