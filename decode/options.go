// Package decode implements the mini-table decoder: the general-purpose
// parse loop that reads a tag, looks the field up in a *minitable.Table,
// and dispatches by (mode, wire type, kind). When the table has a fast
// path and the tag matches its fast dispatch slot, the fastpath package
// decodes the record first; this general dispatch is the fallback.
package decode

// DefaultMaxDepth is the recursion limit applied when WithMaxDepth is not
// given.
const DefaultMaxDepth = 100

// options holds the resolved settings an Option mutates. Kept unexported
// (with Option wrapping a closure over it) rather than taking a plain
// variadic struct so that new options can be added without breaking
// every call site.
type options struct {
	alias              bool
	checkRequired      bool
	allowUnlinked      bool
	alwaysValidateUTF8 bool
	maxDepth           int
}

func defaultOptions() options {
	return options{maxDepth: DefaultMaxDepth}
}

// Option configures a single Decode call.
type Option struct{ apply func(*options) }

// WithAliasing stores string/bytes field values as views directly into the
// input buffer instead of copying them into the arena. The caller must
// guarantee the input buffer outlives the message's arena, not merely the
// Decode call.
func WithAliasing() Option {
	return Option{func(o *options) { o.alias = true }}
}

// WithCheckRequired requests a post-parse sweep verifying every required
// field reachable from the target message has its hasbit set.
func WithCheckRequired() Option {
	return Option{func(o *options) { o.checkRequired = true }}
}

// WithAllowUnlinked permits parsing sub-messages whose mini-table has no
// linked sub-table, representing them as a tagged opaque message instead
// of failing.
func WithAllowUnlinked() Option {
	return Option{func(o *options) { o.allowUnlinked = true }}
}

// WithAlwaysValidateUTF8 validates UTF-8 on every string field, including
// proto2 ones that would otherwise only be checked under proto3 rules.
func WithAlwaysValidateUTF8() Option {
	return Option{func(o *options) { o.alwaysValidateUTF8 = true }}
}

// WithMaxDepth overrides the maximum sub-message/group recursion depth.
func WithMaxDepth(depth int) Option {
	return Option{func(o *options) { o.maxDepth = depth }}
}

func resolveOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
