// Package ui provides semantic text formatting for syc CLI output.
//
// Formatters render content (commands, paths, identities, inspected values)
// in color when the terminal supports it. When NO_COLOR is set or the
// terminal doesn't support colors, text decorations are used instead.
//
// # Semantic Formatters
//
//	ui.Code.Sprint("syc key import")        // Commands
//	ui.Path.Sprint("keys/alice.key")         // Paths
//	ui.Success.Sprint("✓")                   // Success indicators
//	ui.Error.Sprint("✗")                     // Error indicators
//	ui.Highlight.Sprint("bob@example.com")   // Identities
//	ui.Field("sender", "alice@example.com")  // Inspect output lines
//
// # Color Behavior
//
// Without color, Code gets `backticks`, Highlight gets 'single quotes' and
// Muted gets (parentheses). Field values are never decorated so lines such as
// "envelope magic: SYC1" can be matched by scripts.
package ui
