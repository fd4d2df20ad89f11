package pantrysvc

// InventoryConfig holds configuration parameters for the inventory service.
type InventoryConfig struct {
	// MergeByName makes AddItem add to an existing item of the same name
	// (case-insensitive) instead of always creating a new record.
	MergeByName bool `env:"MERGE_BY_NAME" default:"false"`

	// MaxRetries bounds the retries of a quantity update after a version conflict.
	MaxRetries int `env:"MAX_RETRIES" default:"3"`

	// DefaultQuantity is used when AddItem is called with a zero quantity.
	DefaultQuantity int `env:"DEFAULT_QUANTITY" default:"1"`

	// MaxNameLength is the maximum item name length in characters.
	MaxNameLength int `env:"MAX_NAME_LENGTH" default:"100"`
}
