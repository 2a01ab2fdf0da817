package constants

// Reserved field names
const (
	// IdentityKey is the canonical name of the identity field.
	IdentityKey = "_id"
	// IdentityAlias resolves to IdentityKey on every read and write.
	IdentityAlias = "id"

	CreatedAt = "created_at"
	UpdatedAt = "updated_at"
)

// WildcardScope suppresses every registered scope when passed as an ignored scope name.
const WildcardScope = "*"

// ResolveKey maps the identity alias to the canonical identity key.
func ResolveKey(key string) string {
	if key == IdentityAlias {
		return IdentityKey
	}
	return key
}
