package gate

import (
	"path"
	"strings"

	"github.com/PolarWolf314/syc/internal/acl"
	"github.com/PolarWolf314/syc/internal/audit"
)

// Classify maps a request method and target path to its access type and the
// capability the ACL must grant. Unrecognized methods classify as deny with
// ok false.
func Classify(method, target string) (accessType audit.AccessType, capability acl.Capability, ok bool) {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		return audit.AccessRead, acl.Read, true
	case "PUT", "POST", "PATCH", "DELETE":
		if isRuleFile(target) {
			return audit.AccessAdmin, acl.Admin, true
		}
		return audit.AccessWrite, acl.Write, true
	default:
		return audit.AccessDeny, 0, false
	}
}

func isRuleFile(target string) bool {
	return path.Base(strings.TrimSuffix(target, "/")) == acl.RuleFileName
}
