package addr

import "testing"

func TestDetectKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
	}{
		{"", KindEmpty},
		{"192.168.1.1", KindIP4},
		{"::1", KindIP6},
		{"2001:db8::1", KindIP6},
		{"example.com", KindHostname},
		{"example.com.", KindHostname},
		{"xn--exmple-cua.com", KindHostname},
		{"sub.domain.example.com", KindHostname},
		{"not_a_host", KindUnknown},
		{"-leadinghyphen.com", KindUnknown},
		{"trailinghyphen-.com", KindUnknown},
		{"nodot", KindUnknown},
		{"a..b", KindUnknown},
	}
	for _, c := range cases {
		if got := DetectKind(c.in); got != c.want {
			t.Errorf("DetectKind(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestDetectKindOverlongRejected(t *testing.T) {
	long := ""
	for i := 0; i < 260; i++ {
		long += "a"
	}
	if got := DetectKind(long); got != KindUnknown {
		t.Errorf("overlong address = %s, want UNKNOWN", got)
	}
}

func TestAddressBindableConnectable(t *testing.T) {
	var empty Address
	if empty.Bindable() || empty.Connectable() {
		t.Error("zero-value Address should be neither bindable nor connectable")
	}
}
