// Package tool provides the definition registry: resident command
// definitions instantiated once from manifests, executed by plugin id and
// torn down in isolation.
//
// The package is organized around three areas:
//
//   - Manifests and runners: definition manifests discovered on a search
//     path and turned into Definitions by a runner Factory (native, stdio).
//   - Registry: execution bookkeeping, statistics, observation and history.
//   - Payloads: the versioned text a host stores with a command and later
//     hands back for dispatch.
package tool
