package types

// PlanTier identifies a subscription plan.
type PlanTier string

const (
	PlanFree       PlanTier = "FREE"
	PlanBase       PlanTier = "BASE"
	PlanPro        PlanTier = "PRO"
	PlanEnterprise PlanTier = "ENTERPRISE"
)

// legacyProAlias is the historical name for the PRO tier. Older accounts and
// imports still carry it, so plan resolution accepts it as an input alias.
const legacyProAlias = "DEVELOPER"

// NormalizePlanTier canonicalizes a plan name: uppercases it and maps the
// legacy DEVELOPER alias onto PRO. It does not validate that the result is a
// known tier; callers that need validation use PlanTier.Valid.
func NormalizePlanTier(name string) PlanTier {
	tier := PlanTier(asciiUpper(name))
	if tier == legacyProAlias {
		return PlanPro
	}
	return tier
}

// Valid reports whether the tier is one of the known plan tiers.
func (t PlanTier) Valid() bool {
	switch t {
	case PlanFree, PlanBase, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// asciiUpper upper-cases ASCII letters. Plan names are ASCII by construction.
func asciiUpper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

// CustomerRole classifies a customer profile record.
type CustomerRole string

const (
	RoleQA             CustomerRole = "QA"
	RoleUser           CustomerRole = "USER"
	RoleDeveloper      CustomerRole = "DEVELOPER"
	RoleProductManager CustomerRole = "PRODUCT MANAGER"
	RoleTeamLead       CustomerRole = "TEAM LEAD"
)

// Currency enumerates supported product currencies.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// PaymentMethod enumerates supported order payment methods.
type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "CARD"
	PaymentUPI        PaymentMethod = "UPI"
	PaymentNetBanking PaymentMethod = "NET_BANKING"
)

// PaymentStatus is the settlement state of an order transaction.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
	PaymentPending PaymentStatus = "PENDING"
)

// LogLevel is the severity of a system log entry.
type LogLevel string

const (
	LogInfo     LogLevel = "INFO"
	LogWarning  LogLevel = "WARNING"
	LogError    LogLevel = "ERROR"
	LogCritical LogLevel = "CRITICAL"
)

// FieldDataType is the declared primitive type of a custom field.
type FieldDataType string

const (
	FieldString   FieldDataType = "STRING"
	FieldInteger  FieldDataType = "INTEGER"
	FieldDecimal  FieldDataType = "DECIMAL"
	FieldBoolean  FieldDataType = "BOOLEAN"
	FieldDate     FieldDataType = "DATE"
	FieldDatetime FieldDataType = "DATETIME"
	FieldEmail    FieldDataType = "EMAIL"
	FieldJSON     FieldDataType = "JSON"
)

// Valid reports whether the data type is one of the supported field types.
func (t FieldDataType) Valid() bool {
	switch t {
	case FieldString, FieldInteger, FieldDecimal, FieldBoolean,
		FieldDate, FieldDatetime, FieldEmail, FieldJSON:
		return true
	}
	return false
}

// SubscriptionStatus represents the state of a billing subscription.
type SubscriptionStatus string

const (
	SubStatusActive    SubscriptionStatus = "ACTIVE"
	SubStatusPastDue   SubscriptionStatus = "PAST_DUE"
	SubStatusCancelled SubscriptionStatus = "CANCELLED"
	SubStatusExpired   SubscriptionStatus = "EXPIRED"
)

// EntityType names a quota-governed entity table. The quota ledger scans these
// when computing a principal's live record count.
type EntityType string

const (
	EntityCustomerProfile EntityType = "customer_profiles"
	EntityProductCatalog  EntityType = "product_catalog"
	EntityOrder           EntityType = "order_transactions"
	EntityUsageAnalytics  EntityType = "feature_usage_analytics"
)
