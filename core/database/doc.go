// Package database opens the audit ledger database.
//
// It wraps GORM so the rest of the application only deals with a configured *gorm.DB.
// Two drivers are supported: sqlite (a local file, the default) and mysql for a
// shared ledger.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Audit ledger unavailable", zap.Error(err))
//	}
package database
