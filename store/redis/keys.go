package redis

// Key prefixes for primary entity storage.
const (
	prefixMessage      = "smsrelay:msg:"
	prefixOrganisation = "smsrelay:org:"
	prefixUser         = "smsrelay:usr:"
)

// Key prefixes for lookup indexes.
const (
	// prefixAttempt maps an attempt ID to its message ID.
	prefixAttempt = "smsrelay:att:"
)

// Key names for sorted set indexes.
const (
	// zPending scores each message by its oldest pending attempt.
	zPending = "smsrelay:z:pending"
)

// Key prefixes for set indexes.
const (
	sUnassigned  = "smsrelay:s:unassigned"
	sDonorPrefix = "smsrelay:s:donor:" // + donor ID
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// donorSetKey returns the set of message IDs with attempts pending for donor.
func donorSetKey(donorID string) string {
	return sDonorPrefix + donorID
}
