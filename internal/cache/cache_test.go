package cache

import "testing"

func TestHashIndexFirstSeenWins(t *testing.T) {
	x := NewHashIndex()
	if owner, added := x.Register("abc", "a.txt"); !added || owner != "a.txt" {
		t.Fatalf("first register: %q %v", owner, added)
	}
	if owner, added := x.Register("abc", "b.txt"); added || owner != "a.txt" {
		t.Fatalf("second register: %q %v", owner, added)
	}
	x.Forget("abc")
	if _, ok := x.Lookup("abc"); ok {
		t.Fatalf("digest still present after Forget")
	}
	if owner, _ := x.Register("abc", "c.txt"); owner != "c.txt" {
		t.Fatalf("owner after Forget = %q", owner)
	}
	if x.Len() != 1 {
		t.Fatalf("Len = %d", x.Len())
	}
}

func TestMemoIsWriteOnce(t *testing.T) {
	m := NewMemo[int]()
	if got := m.Put("k", 1); got != 1 {
		t.Fatalf("Put = %d", got)
	}
	if got := m.Put("k", 2); got != 1 {
		t.Fatalf("second Put = %d, want first value", got)
	}
	m.Put("a", 3)
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "k" {
		t.Fatalf("Keys = %v", keys)
	}
	if v, ok := m.Get("k"); !ok || v != 1 {
		t.Fatalf("Get = %d %v", v, ok)
	}
}
