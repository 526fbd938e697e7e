// Package config provides configuration management for the table merger.
//
// It uses Viper to read environment variables, optionally overlaid from a .env file
// through godotenv. Defaults live next to each setting as struct tags.
//
// # Configuration Structure
//
// The Config struct gathers every partial configuration:
//   - Merge: shard parallelism, similarity threshold, identity marker name
//   - Server: report API port and API key
//   - Database: audit ledger driver and connection details
//   - Storage: S3/MinIO credentials and export bucket
//   - Log: logging level and format
//
// Nested keys map to upper-case variables with underscores, so merge.parallelism
// is read from MERGE_PARALLELISM.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Merge.SimilarityThreshold)
package config
