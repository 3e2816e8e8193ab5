package invoker

type callOptions struct {
	readCache  bool
	writeCache bool
	extract    string
}

// CallOption customizes a single call
type CallOption func(*callOptions)

func defaultCallOptions() callOptions {
	return callOptions{readCache: true, writeCache: true}
}

// SkipCacheRead forces a network call. The fresh result is still written to the cache.
func SkipCacheRead() CallOption {
	return func(o *callOptions) {
		o.readCache = false
	}
}

// NoCache disables the cache for the call entirely. Used for writes.
func NoCache() CallOption {
	return func(o *callOptions) {
		o.readCache = false
		o.writeCache = false
	}
}

// Extract selects part of a JSON result with a JMESPath expression before it is returned
func Extract(expression string) CallOption {
	return func(o *callOptions) {
		o.extract = expression
	}
}
