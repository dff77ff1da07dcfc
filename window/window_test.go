// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package window

import "testing"

func TestSelfOverlappingMatch(t *testing.T) {
	// distance=1, length=N expands the previous byte N times.
	w := New()
	w.AppendByte('a')
	got := w.AppendMatch(1, 5)
	if want := "aaaaa"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if w.PlainPos() != 6 {
		t.Errorf("got plainPos %d, want 6", w.PlainPos())
	}
}

func TestAppendMatchNonTrivialDistance(t *testing.T) {
	w := New()
	w.AppendBytes([]byte("abc"))
	got := w.AppendMatch(3, 5)
	if want := "abcab"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDictionaryDoesNotCountTowardPlainPos(t *testing.T) {
	w := New()
	w.AppendDictionaryFromFile([]byte("dictionary-bytes"))
	if w.PlainPos() != 0 {
		t.Errorf("got plainPos %d, want 0", w.PlainPos())
	}
	// back-references into the dictionary still resolve.
	got := w.AppendMatch(16, 4)
	if want := "dict"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if w.PlainPos() != 4 {
		t.Errorf("got plainPos %d, want 4", w.PlainPos())
	}
}

func TestAppendByteWrapsAtCapacity(t *testing.T) {
	w := New()
	for i := 0; i < Size; i++ {
		w.AppendByte(byte(i))
	}
	w.AppendByte(0xAB)
	got := w.AppendMatch(1, 1)
	if len(got) != 1 || got[0] != 0xAB {
		t.Errorf("got %v, want [0xAB]", got)
	}
}
