// Package logger provides leveled, colored logging for syc commands and the
// components they drive.
//
// # Verbosity Levels
//
// Logging behavior is controlled by two flags:
//
//   - --verbose: Shows info and warning messages
//   - --debug: Shows all messages including debug details and errors
//
// Without flags, only WarnfAlways output is shown.
//
// # Log Methods
//
//	Logger.Infof()           // Shown with --verbose or --debug
//	Logger.Debugf()          // Shown only with --debug
//	Logger.Warnf()           // Shown with --verbose or --debug
//	Logger.WarnfAlways()     // Always shown (critical warnings)
//	Logger.Errorf()          // Shown with --debug
//	Logger.ErrorfAndReturn() // Errorf, then returns the formatted error
//
// # Usage
//
// The zero Logger is silent apart from critical warnings, so library
// components (key store, audit logger, sync gate) accept one by value and
// callers that do not care can leave it empty:
//
//	log := logger.Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Encrypted %s for %d recipients", rel, n)
//
// Never pass plaintext or key material to a log method.
package logger
