package scheduler

import "time"

// Option configures a job.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source of a job. A nil clock is ignored.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
