package dashboard

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithAvgDealSize sets the typical deal value used by the meetings formula.
// Non-positive values are ignored.
func WithAvgDealSize(size float64) Option {
	return func(b *Builder) {
		if size > 0 {
			b.avgDealSize = size
		}
	}
}

// WithWinRate sets the meeting-to-deal conversion rate. Values outside
// (0, 1] are ignored.
func WithWinRate(rate float64) Option {
	return func(b *Builder) {
		if rate > 0 && rate <= 1 {
			b.winRate = rate
		}
	}
}

// WithFallbackCoverageRatio sets the coverage multiplier used for owners
// without historic data. Non-positive values are ignored.
func WithFallbackCoverageRatio(ratio float64) Option {
	return func(b *Builder) {
		if ratio > 0 {
			b.fallbackRatio = ratio
		}
	}
}
