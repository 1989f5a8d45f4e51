// Package configs resolves where syc keeps its state.
//
// Everything private lives under a vault directory (default ~/.syc, or
// $SYC_VAULT):
//
//	<vault>/keys/<identity>.key     local keypairs (0600)
//	<vault>/trust/<identity>.json   pinned remote bundles
//	<vault>/config/datasite.json    encrypted and shadow roots
//	<vault>/config/gate.toml        sync gate settings
//
// # Datasite Configuration
//
// datasite.json names the encrypted root (the shared datasites namespace) and
// the shadow root (plaintext mirror). Relative paths are resolved against the
// vault. Command-line flags override the file.
//
// # Gate Configuration
//
// gate.toml is TOML:
//
//	listen_addr = "127.0.0.1:7938"
//	logs_root = "logs"
//	max_segment_bytes = 10485760
//	owner_full_access = false
//
// Missing fields take defaults from DefaultGateConfig.
package configs
