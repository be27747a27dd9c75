package api

// Category classifies what kind of sensitive content was detected.
type Category string

const (
	CategoryPII            Category = "pii"
	CategoryCredentials    Category = "credentials"
	CategoryLogFile        Category = "log_file"
	CategoryCodeSecrets    Category = "code_secrets"
	CategoryInfrastructure Category = "infrastructure"
	CategoryClean          Category = "clean"

	// CategoryError is reserved for detector failure. It is never a valid
	// classifier output and must cause the request to be blocked.
	CategoryError Category = "error"
)

// ValidCategory reports whether c is a category the classifier may return.
// CategoryError is excluded: it marks detector failure, not a classification.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryPII, CategoryCredentials, CategoryLogFile,
		CategoryCodeSecrets, CategoryInfrastructure, CategoryClean:
		return true
	}
	return false
}

// ItemType names a kind of sensitive value the scrubber knows how to find.
// The set is closed; the detector and the scrubber share it.
type ItemType string

const (
	// Prompt set.
	ItemEmail      ItemType = "email"
	ItemPhone      ItemType = "phone"
	ItemName       ItemType = "name"
	ItemAPIKey     ItemType = "api_key"
	ItemSecret     ItemType = "secret"
	ItemBearer     ItemType = "bearer"
	ItemPath       ItemType = "path"
	ItemResourceID ItemType = "resource_id"

	// Log set.
	ItemIP           ItemType = "ip"
	ItemPrivateIP    ItemType = "private_ip"
	ItemInternalURL  ItemType = "internal_url"
	ItemTimestamp    ItemType = "timestamp"
	ItemEndpoint     ItemType = "endpoint"
	ItemUser         ItemType = "user"
	ItemTerminalUser ItemType = "terminal_user"
)

// PromptItemTypes returns the item types matched by the standard (prompt)
// pattern set, in stable order.
func PromptItemTypes() []ItemType {
	return []ItemType{
		ItemEmail, ItemPhone, ItemName, ItemAPIKey,
		ItemSecret, ItemBearer, ItemPath, ItemResourceID,
	}
}

// LogItemTypes returns the item types matched by the log pattern set,
// in stable order.
func LogItemTypes() []ItemType {
	return []ItemType{
		ItemIP, ItemPrivateIP, ItemInternalURL, ItemTimestamp,
		ItemEndpoint, ItemUser, ItemTerminalUser,
	}
}

// AllItemTypes returns the union of the prompt and log sets. The gateway
// scrubs with this union regardless of the detected category: log data
// pasted into prompts routinely carries prompt-type items and vice versa.
func AllItemTypes() []ItemType {
	return append(PromptItemTypes(), LogItemTypes()...)
}

// ValidItemType reports whether t belongs to the closed vocabulary.
func ValidItemType(t ItemType) bool {
	switch t {
	case ItemEmail, ItemPhone, ItemName, ItemAPIKey, ItemSecret,
		ItemBearer, ItemPath, ItemResourceID,
		ItemIP, ItemPrivateIP, ItemInternalURL, ItemTimestamp,
		ItemEndpoint, ItemUser, ItemTerminalUser:
		return true
	}
	return false
}

// CategoryDefaults maps a category to the item types backfilled when the
// classifier names a category but omits item_types.
func CategoryDefaults(c Category) []ItemType {
	switch c {
	case CategoryPII:
		return []ItemType{ItemEmail, ItemPhone, ItemName}
	case CategoryCredentials:
		return []ItemType{ItemAPIKey, ItemSecret, ItemBearer}
	case CategoryLogFile:
		return []ItemType{ItemIP, ItemPrivateIP, ItemInternalURL, ItemTimestamp, ItemEndpoint, ItemUser}
	case CategoryCodeSecrets:
		return []ItemType{ItemAPIKey, ItemSecret, ItemPath}
	case CategoryInfrastructure:
		return []ItemType{ItemIP, ItemInternalURL, ItemResourceID}
	}
	return nil
}
