package storage

// FetchRecord is one ledger row: the terminal outcome of a work item.
type FetchRecord struct {
	Identifier string
	FilePath   string
	Outcome    string
	Bytes      int64
	Reason     string
	RunID      string
	FetchedAt  string
}

// OutcomeCount is an aggregated ledger view, one row per outcome.
type OutcomeCount struct {
	Outcome string
	Count   int
	Bytes   int64
}

// FetchReadRepository serves the report command.
type FetchReadRepository interface {
	GetFetches() ([]FetchRecord, error)
	CountByOutcome() ([]OutcomeCount, error)
}

// FetchWriteRepository is fed by the fetch loop, one record per terminal item.
type FetchWriteRepository interface {
	RecordFetch(rec FetchRecord) error
}
