// Package server exposes a permission.Manager over HTTP.
//
// Applications call the /ensure endpoints to check a permission. Each call
// long-polls until the permission is confirmed from a token, granted by the
// user, or denied. The user's UI watches /event for permission.requested
// events and answers them through the consent endpoints.
//
// # API Endpoints
//
//   - POST /ensure/{protocol,basket,certificate,spending,label,grouped}
//   - GET  /permission/pending: requests currently waiting for an answer
//   - POST /permission/grant, /permission/deny: answer a single request
//   - POST /grouped/grant, /grouped/deny: answer a grouped request
//   - GET  /tokens/?type=&originator=, POST /tokens/revoke
//   - GET  /spending?originator=: satoshis spent this calendar month
//   - GET  /config, GET /health
//   - GET  /event: Server-Sent Events
//
// Request IDs are passed in the JSON body rather than the path since they
// contain ':' and arbitrary originator and protocol text.
//
// # Errors
//
// Manager errors are mapped onto ErrorResponse codes: user denials become
// 403 PERMISSION_DENIED, invalid parameters 400 INVALID_REQUEST, unknown
// request IDs 404 NOT_FOUND, and forbidden operations such as touching an
// admin basket 403 INVALID_OPERATION. Errors raised by the wallet itself are
// reported as 500 WALLET_ERROR.
//
// # Usage Example
//
//	mgr := permission.NewManager(w, "admin.example")
//	srv := server.New(server.DefaultConfig(), mgr, event.NewBus())
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
