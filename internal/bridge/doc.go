// Package bridge mirrors the property trees of a running INDI server.
//
// One TCP connection per server; a single ingest goroutine decodes the
// XML event stream and is the only writer to the mirrored state, so
// readers need only a shared lock and never observe a half-applied
// event. Every mirrored change carries a dirty timestamp, which lets
// HTTP clients poll incrementally (getDirty with a cursor) instead of
// re-reading whole trees.
//
// Writes go the other way: SetProperty validates a request against the
// mirrored definition (permission, element names, number ranges, switch
// rules) and forwards it as a newXXXVector. The local tree is not
// updated optimistically; the server's echoed setXXXVector confirms the
// change through the normal ingest path.
//
// Subscribers (WebSocket hub, MQTT publisher, InfluxDB writer) receive
// a Notification for every define, change, delete, and message.
package bridge
