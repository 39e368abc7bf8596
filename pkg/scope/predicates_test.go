package scope

import "testing"

func TestIsAdmin(t *testing.T) {
	cases := []struct {
		names []string
		want  bool
	}{
		{[]string{"public"}, false},
		{[]string{"admin"}, true},
		{[]string{"vault-only", "public"}, true},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsAdmin(c.names); got != c.want {
			t.Errorf("IsAdmin(%v) = %v, want %v", c.names, got, c.want)
		}
	}
}

func TestHasWriteScopes(t *testing.T) {
	cases := []struct {
		caller, record []string
		want           bool
	}{
		{[]string{"a", "b"}, nil, true},
		{[]string{"a", "b"}, []string{"a"}, true},
		{[]string{"a"}, []string{"a", "b"}, false},
		{nil, []string{"a"}, false},
	}
	for _, c := range cases {
		if got := HasWriteScopes(c.caller, c.record); got != c.want {
			t.Errorf("HasWriteScopes(%v, %v) = %v, want %v", c.caller, c.record, got, c.want)
		}
	}
}

func TestSubset(t *testing.T) {
	got := Subset([]string{"a", "b", "c"}, []string{"b", "c", "d"})
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Subset returned %v", got)
	}
}
