// Package logging provides the structured logging system for the credential
// helper, built on Go's standard slog package.
//
// All log entries carry a subsystem identifier so that the different stages
// of a credential operation can be filtered independently:
//
//   - **Authority**: token acquisition and exchange against identity providers
//   - **Detector**: tenant/authority detection probes
//   - **TenantCache**: the on-disk tenant cache
//   - **Store**: secret store reads and writes
//   - **Orchestrator**: the per-provider authentication facade
//   - **Cmd**: command-line entry points
//
// Initialize once at startup with Init, then log via the package-level
// functions:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Debug("Authority", "acquired token for %s", host)
//	logging.Error("Store", err, "failed to persist credential")
//
// Credential helpers write the git-credential protocol on stdout, so all
// diagnostic output goes to stderr (or a log file) and never mixes with
// protocol output.
//
// Secrets must never reach a log line. Token and password values are carried
// in redacting wrapper types by the callers; this package assumes message
// arguments are safe to print.
package logging
