package merge

// Config holds the tunables of the merge engine.
type Config struct {
	// Parallelism caps the number of shards merged at once. Zero runs every shard at once.
	Parallelism int `mapstructure:"parallelism" default:"0"`
	// SimilarityThreshold is the line-similarity ratio below which a crawl conflict is flagged.
	// It only affects diagnostics, never which page is kept.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" default:"0.7"`
	// IdentityFile is the name of the marker file every shard must carry.
	IdentityFile string `mapstructure:"identity_file" default:"id"`
}

// DefaultSimilarityThreshold is used when the configured threshold is not positive.
const DefaultSimilarityThreshold = 0.7

// DefaultIdentityFile is used when no identity file name is configured.
const DefaultIdentityFile = "id"

func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.IdentityFile == "" {
		c.IdentityFile = DefaultIdentityFile
	}
	return c
}
