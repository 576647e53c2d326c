// Package poll runs periodic queries against instruments.
package poll

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/thinkgos/timing/v4"
)

const (
	// DefaultRandValue 单位ms
	// 默认随机值上限,当就绪队列满时,
	// 请求延迟 rand.Intn(v)*1ms 后再入队
	DefaultRandValue = 50
	// DefaultReadyQueuesLength 默认就绪列表长度
	DefaultReadyQueuesLength = 256
)

// ErrInvalidRequest a request has no command or a bad size.
var ErrInvalidRequest = errors.New("poll: invalid request")

// Querier is what a Poller queries, *instrument.Instrument satisfies it.
type Querier interface {
	Query(cmd string, size int) (string, error)
}

// Poller queries an instrument at the scan rate of each request. Queries
// are issued from one goroutine, so the instrument is never used concurrently.
type Poller struct {
	q              Querier
	randValue      int
	readyQueueSize int
	ready          chan *Request
	handler        Handler
	panicHandle    func(err interface{})
	ctx            context.Context
	cancel         context.CancelFunc
	once           sync.Once
}

// Result 某个请求的结果与参数
type Result struct {
	Command  string        // 命令
	Size     int           // 读取长度,-1 读到终止符
	ScanRate time.Duration // 扫描速率scan rate
	TxCnt    uint64        // 发送计数
	ErrCnt   uint64        // 发送错误计数
}

// Request 请求
type Request struct {
	Command  string        // 命令
	Size     int           // 读取长度,-1 读到终止符
	ScanRate time.Duration // 扫描速率scan rate, zero queries once
	txCnt    uint64        // 发送计数
	errCnt   uint64        // 发送错误计数
	tm       *timing.Timer
}

// New creates a poller of q.
func New(q Querier, opts ...Option) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		q:              q,
		randValue:      DefaultRandValue,
		readyQueueSize: DefaultReadyQueuesLength,
		handler:        &NopProc{},
		panicHandle:    func(interface{}) {},
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ready = make(chan *Request, p.readyQueueSize)
	return p
}

// Start 启动
func (sf *Poller) Start() {
	sf.once.Do(func() {
		go sf.readPoll()
	})
}

// Close stops polling, the instrument is left open.
func (sf *Poller) Close() error {
	sf.cancel()
	return nil
}

// AddPollJob 增加采集任务
func (sf *Poller) AddPollJob(r Request) error {
	if err := sf.ctx.Err(); err != nil {
		return err
	}
	if r.Command == "" || r.Size < -1 || r.ScanRate < 0 {
		return ErrInvalidRequest
	}

	req := &Request{
		Command:  r.Command,
		Size:     r.Size,
		ScanRate: r.ScanRate,
		tm:       timing.NewTimer(),
	}
	req.tm.WithJobFunc(func() {
		select {
		case <-sf.ctx.Done():
			return
		case sf.ready <- req:
		default:
			timing.Add(req.tm, time.Duration(rand.Intn(sf.randValue))*time.Millisecond)
		}
	})
	timing.Add(req.tm, req.ScanRate)
	return nil
}

// 读协程
func (sf *Poller) readPoll() {
	for {
		select {
		case <-sf.ctx.Done():
			return
		case req := <-sf.ready: // 查看是否有准备好的请求
			sf.procRequest(req)
		}
	}
}

func (sf *Poller) procRequest(req *Request) {
	defer func() {
		if err := recover(); err != nil {
			sf.panicHandle(err)
		}
	}()

	req.txCnt++
	resp, err := sf.q.Query(req.Command, req.Size)
	if err != nil {
		req.errCnt++
	} else {
		sf.handler.ProcResponse(req.Command, resp)
	}

	if req.ScanRate > 0 {
		timing.Add(req.tm, req.ScanRate)
	}
	sf.handler.ProcResult(err, &Result{
		req.Command,
		req.Size,
		req.ScanRate,
		req.txCnt,
		req.errCnt,
	})
}
