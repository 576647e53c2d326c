package vxi11

import (
	"bytes"
	"sync"
)

// pool of call buffers, shared by every client
type pool struct {
	pl *sync.Pool
}

func newPool(size int) *pool {
	return &pool{
		&sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, size))
			},
		},
	}
}

func (sf *pool) get() *bytes.Buffer {
	v := sf.pl.Get().(*bytes.Buffer)
	v.Reset()
	return v
}

func (sf *pool) put(b *bytes.Buffer) {
	sf.pl.Put(b)
}

// 请求池,所有客户端共用一个请求池
var callPool = newPool(callBufferSize)
