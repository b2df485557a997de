// Package internal contains the implementation packages for widgetsync.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - channel: event names, handlers and the dispatcher for "<id>#<suffix>" events
//   - codec: canonical msgpack encoding of event payloads
//   - store: the per-widget JSON cache (memory, file, sqlite)
//   - widget: widget kinds and the adapter that keeps state, cache and socket in step
//   - page: a set of mounted widgets, the shared cache and the feedback feed
//   - transport: the websocket hub and the client used by controlling programs
//   - upstream: the controlling program's view of a page
//   - layout: YAML layout files and hot reload
//   - server: HTTP surface (dashboard, JSON API, socket, metrics)
//   - config, logging, errors, metrics, watcher, version: ambient support
//
// # Data Flow
//
// A UI interaction enters through server or the page itself, updates the
// widget's state, is written to the store and leaves over transport as
// "<id>#<primary>". A controlling program's command arrives over transport,
// is routed by channel to the widget, and follows the same path without
// being echoed back.
package internal
