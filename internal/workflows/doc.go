// Package workflows provides high-level orchestration for syc commands.
//
// Workflows coordinate the key store, envelope codec, encryption engine,
// audit log and sync gate to implement complete user-facing features. Each
// workflow handles a single command's business logic, independent of CLI
// concerns like flag parsing, spinners and output formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Resolves the vault into an Env
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Validating identities and relative paths
//   - Loading keys and trust pins
//   - Performing the core operation
//   - Writing results atomically
//
// # Available Workflows
//
//   - GenerateKey: creates a local keypair and publishes its bundle
//   - ImportBundle: pins a peer's public bundle (trust on first use)
//   - ExportBundle: writes a signed public bundle for a local identity
//   - EncryptFile: encrypts a shadow-root file into the encrypted root
//   - DecryptFile: decrypts an encrypted-root file into the shadow root
//   - InspectFile: reports an envelope's public metadata
//   - ReshareFile: re-encrypts a file for a new recipient set
//   - CheckAccess: evaluates the access rules without touching any file
//   - Log: reads and filters the access log
//   - Serve: runs the sync gate over HTTP
//
// EncryptFile and DecryptFile append an entry to the vault's access log, the
// same log the gate writes.
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching:
//
//	result, err := workflows.DecryptFile(ctx, env, opts)
//	if errors.Is(err, kerrors.ErrNotRecipient) {
//	    // Explain that the sender must reshare the file
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// Serve stops when the context is canceled.
package workflows
