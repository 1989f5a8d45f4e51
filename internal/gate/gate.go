package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/PolarWolf314/syc/internal/acl"
	"github.com/PolarWolf314/syc/internal/audit"
	"github.com/PolarWolf314/syc/internal/configs"
	"github.com/PolarWolf314/syc/internal/envelope"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/keystore"
	logger "github.com/PolarWolf314/syc/internal/logging"
	"github.com/PolarWolf314/syc/internal/secrets"
	"github.com/PolarWolf314/syc/internal/utils"
)

// Request is one access attempt against the encrypted root.
type Request struct {
	User      string
	Path      string
	Method    string
	IP        string
	UserAgent string

	// Body is the plaintext to store on writes, or the rule file on admin writes.
	Body []byte

	// Recipients for writes. Empty means the writer only.
	Recipients []string

	// bodyErr is set when the transport failed to read Body.
	bodyErr error
}

// ErrMethodNotAllowed is returned for methods that map to no access type.
var ErrMethodNotAllowed = fmt.Errorf("%w: method not allowed", kerrors.ErrAccessDenied)

// StatusCode maps a Handle error to the HTTP status recorded in the access log.
func StatusCode(err error) int {
	if errors.Is(err, ErrMethodNotAllowed) {
		return http.StatusMethodNotAllowed
	}
	return kerrors.StatusCode(err)
}

// Response is the outcome of an allowed and successful request.
type Response struct {
	StatusCode int
	AccessType audit.AccessType
	Decision   acl.Decision

	// Body is the decrypted plaintext on reads.
	Body []byte

	// Recipients are the identities a write was encrypted for.
	Recipients []string
}

// Config wires a Gate to its collaborators.
type Config struct {
	Settings *configs.Settings
	Gate     *configs.GateConfig
	Keys     *keystore.Store
	Log      logger.Logger
}

// Gate is the single entry point for access to the encrypted root. Every
// request is checked against the ACL and recorded in the access log.
type Gate struct {
	root       string
	keys       *keystore.Store
	acl        *acl.Evaluator
	audit      *audit.Logger
	deliveries *Tracker
	log        logger.Logger
}

// New loads the ACL rules under the encrypted root and opens the access log.
func New(cfg Config) (*Gate, error) {
	if cfg.Settings == nil || cfg.Gate == nil || cfg.Keys == nil {
		return nil, fmt.Errorf("%w: gate requires settings, gate config and a key store", kerrors.ErrConfig)
	}

	evaluator := acl.NewEvaluator(acl.Options{OwnerFullAccess: cfg.Gate.OwnerFullAccess}, cfg.Log)
	if err := evaluator.Reload(cfg.Settings.DataRoot); err != nil {
		return nil, err
	}

	auditLog, err := audit.New(audit.Options{
		Root:            cfg.Gate.LogsRoot,
		MaxSegmentBytes: cfg.Gate.MaxSegmentBytes,
	}, cfg.Log)
	if err != nil {
		return nil, err
	}

	return &Gate{
		root:       cfg.Settings.DataRoot,
		keys:       cfg.Keys,
		acl:        evaluator,
		audit:      auditLog,
		deliveries: NewTracker(),
		log:        cfg.Log,
	}, nil
}

// ACL returns the gate's evaluator.
func (g *Gate) ACL() *acl.Evaluator { return g.acl }

// Audit returns the gate's access log.
func (g *Gate) Audit() *audit.Logger { return g.audit }

// Deliveries returns the gate's delivery tracker.
func (g *Gate) Deliveries() *Tracker { return g.deliveries }

// Close releases the access log.
func (g *Gate) Close() error {
	return g.audit.Close()
}

// Handle classifies req, checks it against the ACL and performs it when
// allowed. Exactly one access log entry is appended before Handle returns.
//
// Denied requests return ErrAccessDenied without touching the key store or
// the encryption engine. Failures of allowed requests return the underlying
// error; StatusCode gives the status recorded in the log.
func (g *Gate) Handle(ctx context.Context, req Request) (*Response, error) {
	req.User = utils.NormalizeIdentity(req.User)
	if req.User != "" && (!utils.IsValidEmail(req.User) || strings.Contains(req.User, "..")) {
		g.log.Debugf("Treating malformed identity %q as anonymous", req.User)
		req.User = ""
	}

	method := strings.ToUpper(req.Method)
	accessType, capability, known := Classify(method, req.Path)

	entry := audit.Entry{
		Path:       req.Path,
		AccessType: accessType,
		User:       req.User,
		IP:         req.IP,
		UserAgent:  req.UserAgent,
		Method:     method,
	}

	var (
		resp *Response
		err  error
	)
	switch {
	case !known:
		err = fmt.Errorf("%w: %s", ErrMethodNotAllowed, method)
		entry.StatusCode = StatusCode(err)
		entry.DeniedReason = fmt.Sprintf("unsupported method %s", method)

	default:
		decision := g.acl.Evaluate(req.Path, capability, req.User)
		entry.Allowed = decision.Allowed
		if !decision.Allowed {
			err = fmt.Errorf("%w: %s", kerrors.ErrAccessDenied, decision.Reason)
			entry.StatusCode = StatusCode(err)
			entry.DeniedReason = decision.Reason
			break
		}

		resp, err = g.perform(ctx, req, method, accessType)
		if err != nil {
			entry.StatusCode = StatusCode(err)
		} else {
			resp.AccessType = accessType
			resp.Decision = decision
			entry.StatusCode = resp.StatusCode
		}
	}

	if appendErr := g.audit.Append(entry); appendErr != nil {
		g.log.Errorf("Failed to record access to %s by %s: %v", req.Path, entry.User, appendErr)
		if err == nil {
			return nil, appendErr
		}
		return nil, errors.Join(err, appendErr)
	}

	if err != nil {
		g.log.Debugf("%s %s by %q: %v", method, req.Path, req.User, err)
		return nil, err
	}
	g.log.Debugf("%s %s by %q: %d", method, req.Path, req.User, resp.StatusCode)
	return resp, nil
}

func (g *Gate) perform(ctx context.Context, req Request, method string, accessType audit.AccessType) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := utils.SafeJoin(g.root, req.Path)
	if err != nil {
		return nil, err
	}

	switch {
	case method == "OPTIONS":
		return &Response{StatusCode: http.StatusNoContent}, nil
	case method == "HEAD":
		return g.head(target)
	case method == "GET":
		return g.read(target, req.User)
	case method == "DELETE":
		return g.remove(target, req.Path, accessType == audit.AccessAdmin)
	case req.bodyErr != nil:
		return nil, fmt.Errorf("%w: reading request body: %v", kerrors.ErrConfig, req.bodyErr)
	case accessType == audit.AccessAdmin:
		return g.writeRules(target, req.Body)
	default:
		return g.write(target, req)
	}
}

func (g *Gate) head(target string) (*Response, error) {
	info, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, kerrors.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}
	return &Response{StatusCode: http.StatusOK}, nil
}

// read returns the plaintext of an envelope. Files that are not envelopes,
// such as public bundles and rule files, are returned as stored.
func (g *Gate) read(target, user string) (*Response, error) {
	data, err := readFile(target)
	if err != nil {
		return nil, err
	}
	if !envelope.IsEnvelope(data) {
		return &Response{StatusCode: http.StatusOK, Body: data}, nil
	}

	env, err := envelope.Decode(data)
	if err != nil {
		return nil, err
	}
	if _, ok := env.Recipient(user); !ok {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrNotRecipient, user)
	}

	kp, err := g.keys.LookupPrivateKey(user)
	if err != nil {
		return nil, err
	}
	defer kp.Wipe()

	plaintext, err := secrets.DecryptEnvelope(env, kp)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: http.StatusOK, Body: plaintext}, nil
}

func (g *Gate) write(target string, req Request) (*Response, error) {
	recipients := make([]string, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, utils.NormalizeIdentity(r))
	}
	recipients = utils.Dedupe(recipients)
	if len(recipients) == 0 {
		recipients = []string{req.User}
	}

	sender, err := g.keys.LookupPrivateKey(req.User)
	if err != nil {
		return nil, err
	}
	senderPub := sender.Public()
	sender.Wipe()

	keys := make([]*keystore.PublicKey, 0, len(recipients))
	for _, r := range recipients {
		pub, err := g.keys.LookupPublicKey(r)
		if err != nil {
			return nil, err
		}
		keys = append(keys, pub)
	}

	blob, err := secrets.Encrypt(req.Body, senderPub, keys)
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(target, blob, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}

	var others []string
	for _, r := range recipients {
		if r != req.User {
			others = append(others, r)
		}
	}
	g.deliveries.Register(req.Path, others)

	return &Response{StatusCode: http.StatusCreated, Recipients: recipients}, nil
}

func (g *Gate) writeRules(target string, body []byte) (*Response, error) {
	if _, err := acl.ParseRuleFile(body); err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(target, body, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}
	if err := g.acl.Reload(g.root); err != nil {
		return nil, err
	}
	return &Response{StatusCode: http.StatusOK}, nil
}

func (g *Gate) remove(target, rel string, rules bool) (*Response, error) {
	err := os.Remove(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, rel)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}

	if rules {
		if err := g.acl.Reload(g.root); err != nil {
			return nil, err
		}
	} else {
		g.deliveries.Forget(rel)
	}
	return &Response{StatusCode: http.StatusNoContent}, nil
}

func readFile(target string) ([]byte, error) {
	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, kerrors.ErrFileNotFound
	}
	if err != nil {
		// Reading a directory lands here too.
		if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
			return nil, kerrors.ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}
	return data, nil
}
