package poll

// Option 可选项
type Option func(p *Poller)

// WithReadyQueueSize 就绪队列长度
func WithReadyQueueSize(size int) Option {
	return func(p *Poller) {
		if size > 0 {
			p.readyQueueSize = size
		}
	}
}

// WithHandler 配置handler
func WithHandler(h Handler) Option {
	return func(p *Poller) {
		if h != nil {
			p.handler = h
		}
	}
}

// WithRetryRandValue 单位ms
// 默认随机值上限,当就绪队列满时,
// 请求延迟 rand.Intn(v)*1ms 后再入队
func WithRetryRandValue(v int) Option {
	return func(p *Poller) {
		if v > 0 {
			p.randValue = v
		}
	}
}

// WithPanicHandle 发生panic回调,主要用于调试
func WithPanicHandle(f func(interface{})) Option {
	return func(p *Poller) {
		if f != nil {
			p.panicHandle = f
		}
	}
}
