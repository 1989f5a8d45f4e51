package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	alice   = "alice@example.com"
	bob     = "bob@example.com"
	charlie = "charlie@example.com"

	notesPath = "alice@example.com/shared/notes.txt"
)

type peer struct {
	vault    string
	dataRoot string
}

func (p peer) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append(args, "--vault", p.vault, "--data-root", p.dataRoot)
	return runCLI(args...)
}

func (p peer) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := p.run(t, args...)
	if err != nil {
		t.Fatalf("syc %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func newPeers(t *testing.T, n int) []peer {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	dataRoot := t.TempDir()
	peers := make([]peer, n)
	for i := range peers {
		peers[i] = peer{vault: t.TempDir(), dataRoot: dataRoot}
	}
	return peers
}

func bundlePath(p peer, identity string) string {
	return filepath.Join(p.dataRoot, identity, "public", "crypto", "did.json")
}

func TestKeyGenerate(t *testing.T) {
	p := newPeers(t, 1)[0]

	out := p.mustRun(t, "key", "generate", "--identity", alice)
	if !strings.Contains(out, "Generated key for") || !strings.Contains(out, "fingerprint: ") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(bundlePath(p, alice)); err != nil {
		t.Errorf("bundle not published: %v", err)
	}

	out, err := p.run(t, "key", "generate", "--identity", alice)
	if err == nil || !IsReported(err) {
		t.Fatalf("expected a reported error, got %v", err)
	}
	if !strings.Contains(out, "--overwrite") {
		t.Errorf("expected overwrite hint, got:\n%s", out)
	}
}

func TestKeyExport(t *testing.T) {
	p := newPeers(t, 1)[0]
	p.mustRun(t, "key", "generate", "--identity", alice)

	out := p.mustRun(t, "key", "export", "--identity", alice)
	if !strings.Contains(out, `"identity": "alice@example.com"`) || !strings.Contains(out, `"signature"`) {
		t.Errorf("expected the bundle on stdout, got:\n%s", out)
	}
}

func TestKeyImportConflict(t *testing.T) {
	peers := newPeers(t, 2)
	a, b := peers[0], peers[1]

	b.mustRun(t, "key", "generate", "--identity", bob)
	out := a.mustRun(t, "key", "import", "--bundle", bundlePath(b, bob), "--expected-identity", bob)
	if !strings.Contains(out, "trust: pinned") {
		t.Errorf("expected pinned, got:\n%s", out)
	}

	b.mustRun(t, "key", "generate", "--identity", bob, "--overwrite")

	out, err := a.run(t, "key", "import", "--bundle", bundlePath(b, bob), "--expected-identity", bob)
	if err == nil {
		t.Fatal("expected a trust conflict")
	}
	if !strings.Contains(out, "--override") {
		t.Errorf("expected override hint, got:\n%s", out)
	}

	out = a.mustRun(t, "key", "import", "--bundle", bundlePath(b, bob), "--expected-identity", bob, "--override")
	if !strings.Contains(out, "trust: pinned") {
		t.Errorf("expected pinned after override, got:\n%s", out)
	}
}

func TestFileCommands(t *testing.T) {
	peers := newPeers(t, 3)
	a, b, c := peers[0], peers[1], peers[2]

	a.mustRun(t, "key", "generate", "--identity", alice)
	b.mustRun(t, "key", "generate", "--identity", bob)
	c.mustRun(t, "key", "generate", "--identity", charlie)
	a.mustRun(t, "key", "import", "--bundle", bundlePath(b, bob), "--expected-identity", bob)
	a.mustRun(t, "key", "import", "--bundle", bundlePath(c, charlie), "--expected-identity", charlie)

	shadow := filepath.Join(a.vault, "unencrypted", notesPath)
	if err := os.MkdirAll(filepath.Dir(shadow), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shadow, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}

	a.mustRun(t, "file", "encrypt", "--relative", notesPath, "--sender", alice, "--recipient", alice, "--recipient", bob)

	envelopePath := filepath.Join(a.dataRoot, notesPath)
	out := b.mustRun(t, "file", "inspect", "--input", envelopePath, "--identity", bob)
	for _, want := range []string{"envelope magic: SYC1", "sender: " + alice, "recipients: 2", "can decrypt"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}

	b.mustRun(t, "file", "decrypt", "--relative", notesPath, "--identity", bob)
	got, err := os.ReadFile(filepath.Join(b.vault, "unencrypted", notesPath))
	if err != nil {
		t.Fatalf("reading decrypted file: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("bob decrypted %q", got)
	}

	out, err = c.run(t, "file", "decrypt", "--relative", notesPath, "--identity", charlie)
	if err == nil || !IsReported(err) {
		t.Fatalf("expected charlie's decrypt to fail, got %v", err)
	}
	if !strings.Contains(out, "not a recipient") || !strings.Contains(out, "syc file reshare") {
		t.Errorf("expected reshare hint, got:\n%s", out)
	}

	a.mustRun(t, "file", "reshare", "--relative", notesPath, "--identity", alice,
		"--recipient", alice, "--recipient", bob, "--recipient", charlie)
	c.mustRun(t, "file", "decrypt", "--relative", notesPath, "--identity", charlie)
}

func TestFileInspectVerbose(t *testing.T) {
	p := newPeers(t, 1)[0]
	p.mustRun(t, "key", "generate", "--identity", alice)

	shadow := filepath.Join(p.vault, "unencrypted", notesPath)
	if err := os.MkdirAll(filepath.Dir(shadow), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shadow, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	p.mustRun(t, "file", "encrypt", "--relative", notesPath, "--sender", alice)

	out := p.mustRun(t, "file", "inspect", "--input", filepath.Join(p.dataRoot, notesPath), "--verbose")
	for _, want := range []string{"sender fingerprint: ", "suite: ", "ciphertext bytes: "} {
		if !strings.Contains(out, want) {
			t.Errorf("verbose inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestLogWithoutAccessLog(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out, err := runCLI("log", "--logs-root", t.TempDir())
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if !strings.Contains(out, "No access log found") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestLogInvalidDate(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "access"), 0755); err != nil {
		t.Fatal(err)
	}
	_, err := runCLI("log", "--logs-root", root, "--since", "yesterday")
	if err == nil || !IsReported(err) {
		t.Fatalf("expected a reported error, got %v", err)
	}
}

func TestAclCheck(t *testing.T) {
	p := newPeers(t, 1)[0]
	rules := filepath.Join(p.dataRoot, alice, "shared", "syft.pub.yaml")
	if err := os.MkdirAll(filepath.Dir(rules), 0755); err != nil {
		t.Fatal(err)
	}
	content := "rules:\n  - pattern: \"**\"\n    access:\n      read: [\"bob@example.com\"]\n"
	if err := os.WriteFile(rules, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	out := p.mustRun(t, "acl", "check", "--path", notesPath, "--identity", bob)
	if !strings.Contains(out, "may read") || !strings.Contains(out, "rule: alice@example.com/shared **") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out = p.mustRun(t, "acl", "check", "--path", notesPath, "--identity", bob, "--capability", "write")
	if !strings.Contains(out, "may not write") {
		t.Errorf("unexpected output:\n%s", out)
	}

	_, err := p.run(t, "acl", "check", "--path", notesPath, "--capability", "own")
	if err == nil || !IsReported(err) {
		t.Fatalf("expected a reported error, got %v", err)
	}
}

func TestRelativePathsResolveAgainstDataRoot(t *testing.T) {
	peers := newPeers(t, 2)
	a, b := peers[0], peers[1]

	// Run from an unrelated directory so nothing lands under the cwd.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	cwd := t.TempDir()
	if err := os.Chdir(cwd); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	bobBundle := filepath.ToSlash(filepath.Join(bob, "public", "crypto", "did.json"))
	b.mustRun(t, "key", "generate", "--identity", bob, "--overwrite", "--bundle-out", bobBundle)
	if _, err := os.Stat(filepath.Join(b.dataRoot, bobBundle)); err != nil {
		t.Fatalf("bundle not published under the data root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cwd, bobBundle)); !os.IsNotExist(err) {
		t.Errorf("bundle written under the working directory: %v", err)
	}

	a.mustRun(t, "key", "generate", "--identity", alice)
	a.mustRun(t, "key", "import", "--bundle", bobBundle, "--expected-identity", bob)

	shadow := filepath.Join(a.vault, "unencrypted", notesPath)
	if err := os.MkdirAll(filepath.Dir(shadow), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shadow, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	a.mustRun(t, "file", "encrypt", "--relative", notesPath, "--sender", alice, "--recipient", bob)

	out := b.mustRun(t, "file", "inspect", "--input", notesPath, "--identity", bob)
	if !strings.Contains(out, "sender: "+alice) || !strings.Contains(out, "can decrypt") {
		t.Errorf("unexpected inspect output:\n%s", out)
	}

	out, err = b.run(t, "file", "inspect", "--input", "../outside.txt")
	if err == nil || !IsReported(err) {
		t.Fatalf("expected a reported error for an escaping path, got %v\n%s", err, out)
	}
}

func TestAclGrant(t *testing.T) {
	p := newPeers(t, 1)[0]
	shared := alice + "/shared"

	out := p.mustRun(t, "acl", "grant", "--dir", shared, "--identity", bob, "--identity", charlie)
	if !strings.Contains(out, "Granted read") || !strings.Contains(out, "'"+charlie+"'") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out = p.mustRun(t, "acl", "grant", "--dir", shared, "--identity", bob)
	if !strings.Contains(out, "Nothing to change") {
		t.Errorf("expected no-op message, got:\n%s", out)
	}

	out = p.mustRun(t, "acl", "check", "--path", notesPath, "--identity", charlie)
	if !strings.Contains(out, "may read") {
		t.Errorf("grant did not take effect:\n%s", out)
	}

	_, err := p.run(t, "acl", "grant", "--dir", shared, "--identity", "not-an-email")
	if err == nil || !IsReported(err) {
		t.Fatalf("expected a reported error, got %v", err)
	}
}
