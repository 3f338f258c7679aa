// Package internal contains the core implementation packages for jah.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: project config loading (lenient JSON or YAML), defaults and CLI settings
//   - packages: the package model, library locator and package queue
//   - runtime: the embedded jah runtime and the bundle header and footer
//   - resolver: virtual path to mounted file resolution and source tree walks
//   - wrap: module and asset registrations, packed or remote
//   - template: the ${name} substitution used for public templates
//   - build: the bundler, public mirror and remote asset copies
//   - server: the development server and live reload wiring
//   - watcher: debounced file system monitoring
//   - websocket: the live reload hub
//   - events: listener registry and observable cell
//   - errors, logging, validation, mimetypes, version: shared support
//
// # Inter-Package Communication
//
// The bundler and the development server share two primitives: the
// resolver decides which file a mount path names and the wrapper turns
// that file into a registration. The bundler walks every tree and joins
// registrations into bundles; the server answers one registration per
// request. Live reload flows from the watcher through an events registry
// and a revision cell to the websocket hub.
package internal
