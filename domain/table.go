package domain

// Table is the name of a mongo collection
type Table string

const (
	TableVaultEvents Table = "vault_events"
)
