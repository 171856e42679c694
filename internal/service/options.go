package service

import "time"

// Clock returns the current time. Services take it as an option so tests
// can pin time.
type Clock func() time.Time

type options struct {
	clock    Clock
	maxDepth int
}

// Option configures a service constructor.
type Option func(*options)

// WithClock overrides the time source. A nil clock is ignored.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMaxDepth bounds hierarchy traversals during propagation and deletion.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:    func() time.Time { return time.Now().UTC() },
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
