package cache

// New builds the engine selected by opt.Policy.
func New[K comparable, V any](opt Options[K, V]) (Cache[K, V], error) {
	switch opt.Policy {
	case PolicyLRU:
		c, err := NewLRU(opt)
		if err != nil {
			return nil, err
		}
		return c, nil
	case PolicyLFU:
		c, err := NewLFU(opt)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &ConfigError{Field: "Policy", Value: opt.Policy, Reason: "unknown policy"}
	}
}
