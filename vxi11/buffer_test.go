package vxi11

import (
	"testing"
)

func Test_pool(t *testing.T) {
	p := newPool(callBufferSize)
	b := p.get()
	if b.Len() != 0 {
		t.Errorf("pool.get() got len = %v, want %v", b.Len(), 0)
	}
	if b.Cap() != callBufferSize {
		t.Errorf("pool.get() got cap = %v, want %v", b.Cap(), callBufferSize)
	}

	b.WriteString("abcd")
	p.put(b)
	b = p.get()
	if b.Len() != 0 {
		t.Errorf("pool.get() after put got len = %v, want %v", b.Len(), 0)
	}
}
