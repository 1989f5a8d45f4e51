// Package acl evaluates hierarchical permission rules.
//
// Any directory under the datasites root may carry a syft.pub.yaml:
//
//	terminal: false
//	rules:
//	  - pattern: "**"
//	    access:
//	      admin: ["alice@x.org"]
//	      read: ["bob@x.org"]
//	      write: ["alice@x.org"]
//
// Patterns are relative to the rule file's directory and use doublestar
// syntax: "**" matches any depth, "*" a single segment. Capabilities are
// ordered read < write < admin; granting a higher one grants the lower ones.
// "*" grants everyone.
//
// # Resolution
//
// Evaluation walks from the deepest directory containing the path up to the
// root. The first matching rule that grants the capability to anyone decides
// by membership. A terminal rule file that does not decide stops the walk and
// denies, so ancestors cannot widen access below it. No decision means deny.
//
// # Reloading
//
// Rule files are loaded wholesale into an immutable Table and installed with
// an atomic pointer swap. Evaluators never observe a partially loaded tree.
package acl
