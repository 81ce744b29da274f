package stringpool

import "testing"

func TestInternDeduplicates(t *testing.T) {
	p := New()
	a := p.Intern([]byte("kworker/0:1"), 0)
	b := p.Intern([]byte("kworker/0:1"), 0)
	if a != b {
		t.Errorf("Intern() returned distinct refs for identical content: %v != %v", a, b)
	}
	if got, want := p.Len(), 1; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
	c := p.Intern([]byte("sshd"), 0)
	if c == a {
		t.Errorf("Intern() merged distinct strings")
	}
	if got, want := p.String(a), "kworker/0:1"; got != want {
		t.Errorf("String(a) = %q, want %q", got, want)
	}
}

func TestInternCutoffFallsThrough(t *testing.T) {
	p := New()
	// All of these strings are chosen to land in the same bucket (same
	// first byte, length < 4, so the hash is just the first byte).
	for i := 0; i < 10; i++ {
		p.Intern([]byte{'a'}, 2)
		p.Intern([]byte{'a', byte('0' + i)}, 2)
	}
	// Past the cutoff, re-interning an earlier string should no longer
	// dedup within this bucket once fallthrough has kicked in, so Len()
	// should reflect more allocations than distinct strings once dedup is
	// abandoned.
	const distinct = 11 // "a" plus "a0".."a9"
	if got := p.Len(); got <= distinct {
		t.Fatalf("Len() = %d, want more than %d distinct strings once dedup is abandoned", got, distinct)
	}
}

func TestReset(t *testing.T) {
	p := New()
	ref := p.Intern([]byte("task"), 0)
	p.Reset()
	if p.Len() != 0 {
		t.Errorf("Len() after Reset() = %d, want 0", p.Len())
	}
	newRef := p.Intern([]byte("task"), 0)
	if newRef != ref {
		t.Errorf("ref after Reset() = %v, want reuse of index 0 = %v", newRef, ref)
	}
}
