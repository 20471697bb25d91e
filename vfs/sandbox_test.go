package vfs

import (
	"path/filepath"
	"testing"
)

func TestNewRequiresAbsoluteRoot(t *testing.T) {
	if _, err := New("relative/path"); err != ErrInvalidRoot {
		t.Fatalf("expected ErrInvalidRoot, got %v", err)
	}
}

func TestNewInitialState(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if sb.Pwd() != "/" || sb.Home() != "/" {
		t.Errorf("pwd=%q home=%q, want both /", sb.Pwd(), sb.Home())
	}
}

func TestCheckAccessWithinRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)

	inside := filepath.Join(root, "a", "b")
	if sb.CheckAccess(inside) != AccessOK {
		t.Errorf("expected inside path to be OK")
	}

	outside := filepath.Dir(root)
	if sb.CheckAccess(outside) != AccessOutsideRoot {
		t.Errorf("expected parent of root to be OUTSIDE_ROOT")
	}
}

func TestCheckAccessRejectsPrefixCollision(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)

	// A sibling directory sharing root as a string prefix ("root-evil")
	// must not be treated as contained — this is why CheckAccess compares
	// path components, not raw string prefixes.
	evil := root + "-evil"
	if sb.CheckAccess(evil) != AccessOutsideRoot {
		t.Errorf("string-prefix sibling must be rejected as OUTSIDE_ROOT")
	}
}

func TestToSystemVariants(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)
	_ = sb.SetHome("/home")

	if got, want := sb.ToSystem("/etc"), filepath.Join(root, "etc"); got != want {
		t.Errorf("absolute: got %q want %q", got, want)
	}
	if got, want := sb.ToSystem("~/x"), filepath.Join(root, "home", "x"); got != want {
		t.Errorf("home-relative: got %q want %q", got, want)
	}
	if got, want := sb.ToSystem("rel"), filepath.Join(root, "rel"); got != want {
		t.Errorf("cwd-relative: got %q want %q", got, want)
	}
}

func TestToSystemDotDotWalkAboveRootStaysEscaped(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)
	_ = sb.Cd("/etc")

	// A ".." walk past root must resolve to a real path outside root, not
	// be silently re-jailed back under it — containment is CheckAccess's
	// job, not ToSystem's (spec S3/§8; original_source's remove_root runs
	// on the unresolved buffer for exactly this reason).
	got := sb.ToSystem("../../..")
	if sb.CheckAccess(got) == AccessOK {
		t.Errorf("resolved path %q should have escaped root, stayed contained", got)
	}
}

func TestToVirtualRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)

	host := sb.ToSystem("/a/b")
	virtual, err := sb.ToVirtual(host)
	if err != nil {
		t.Fatalf("ToVirtual: %v", err)
	}
	if virtual != "/a/b" {
		t.Errorf("got %q, want /a/b", virtual)
	}
}

func TestToVirtualDeniesOutsideRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)

	if _, err := sb.ToVirtual(filepath.Dir(root)); err != ErrAccessDenied {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestCdUpdatesCwdOnSuccess(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)

	if err := sb.Cd("/sub"); err != nil {
		t.Fatalf("Cd: %v", err)
	}
	if sb.Pwd() != "/sub" {
		t.Errorf("pwd = %q, want /sub", sb.Pwd())
	}
}

func TestCdWithDotDotPastRootIsDeniedAndCwdUnchanged(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)
	_ = sb.Cd("/etc")

	// Spec S3/§8: cd("../../..") climbing past root fails ACCESS_DENIED
	// and leaves cwd exactly where it was.
	if err := sb.Cd("../../.."); err != ErrAccessDenied {
		t.Fatalf("Cd: got %v, want ErrAccessDenied", err)
	}
	if sb.Pwd() != "/etc" {
		t.Errorf("cwd = %q, want unchanged /etc", sb.Pwd())
	}
}

func TestTryNormalize(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	sb, _ := New(root)

	if _, ok := sb.TryNormalize("/a/b"); !ok {
		t.Error("expected /a/b to normalize successfully")
	}
}
