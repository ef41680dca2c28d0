package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// NamespaceWildcard in a plan's allowed-namespace set grants access to every
// namespace.
const NamespaceWildcard = "*"

// Plan is the immutable catalog entry for a subscription tier. Plans are
// seeded at system initialization and mutable only by an administrator;
// deletion is always rejected to preserve auditability of historical billing
// periods.
type Plan struct {
	Name              PlanTier `json:"name" db:"name"`
	AllowedNamespaces []string `json:"allowed_namespaces" db:"allowed_namespaces"`

	// API limits
	MonthlyAPILimit    int `json:"monthly_api_limit" db:"monthly_api_limit"`
	MaxRecords         int `json:"max_records" db:"max_records"`
	MaxRecordsPerQuery int `json:"max_records_per_query" db:"max_records_per_query"`

	// Record capabilities
	CanCreateRecords       bool `json:"can_create_records" db:"can_create_records"`
	CanUpdateRecords       bool `json:"can_update_records" db:"can_update_records"`
	CanDeleteRecords       bool `json:"can_delete_records" db:"can_delete_records"`
	CanCreateCustomObjects bool `json:"can_create_custom_objects" db:"can_create_custom_objects"`

	// Custom-object schema limits
	MaxCustomObjects    int `json:"max_custom_objects" db:"max_custom_objects"`
	MaxFieldsPerObject  int `json:"max_fields_per_object" db:"max_fields_per_object"`
	MaxRecordsPerObject int `json:"max_records_per_object" db:"max_records_per_object"`

	// Query permissions
	AllowFilters        bool `json:"allow_filters" db:"allow_filters"`
	AllowSorting        bool `json:"allow_sorting" db:"allow_sorting"`
	AllowBulkOperations bool `json:"allow_bulk_operations" db:"allow_bulk_operations"`

	// Pagination defaults
	PageSize    int `json:"page_size" db:"page_size"`
	MaxPageSize int `json:"max_page_size" db:"max_page_size"`
}

// AllowsNamespace reports whether the plan grants access to the given URL
// namespace, honoring the wildcard marker.
func (p *Plan) AllowsNamespace(namespace string) bool {
	for _, ns := range p.AllowedNamespaces {
		if ns == NamespaceWildcard || ns == namespace {
			return true
		}
	}
	return false
}

// UserProfile is the per-principal quota state: the assigned plan plus the
// API-call window counters and account flags. One row exists per user.
//
// PlanName is nullable only transiently during account creation; a missing
// plan is a hard denial downstream, never unlimited access.
type UserProfile struct {
	UserID           string    `json:"user_id" db:"user_id"`
	Email            string    `json:"email" db:"email"`
	FirstName        string    `json:"first_name,omitempty" db:"first_name"`
	LastName         string    `json:"last_name" db:"last_name"`
	OrganizationName string    `json:"organization_name,omitempty" db:"organization_name"`
	PlanName         *PlanTier `json:"plan" db:"plan_name"`

	APICallsUsed int       `json:"api_calls_used" db:"api_calls_used"`
	APIResetAt   time.Time `json:"api_reset_at" db:"api_reset_at"`
	RecordsUsed  int       `json:"records_used" db:"records_used"`

	IsEmailVerified bool `json:"is_email_verified" db:"is_email_verified"`
	IsActive        bool `json:"is_active" db:"is_active"`
	IsAdmin         bool `json:"-" db:"is_admin"`

	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// OwnedRecord carries the fields shared by every quota-governed entity:
// a 14-digit public ID, the owning principal, the platform-owned marker, and
// soft-delete state. Embedded by the concrete entity structs.
type OwnedRecord struct {
	PublicID        string     `json:"public_id" db:"public_id"`
	CreatedBy       string     `json:"-" db:"created_by"`
	IsPlatformOwned bool       `json:"is_platform_owned" db:"is_platform_owned"`
	IsDeleted       bool       `json:"-" db:"is_deleted"`
	DeletedAt       *time.Time `json:"-" db:"deleted_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// CustomerProfile is a CRM-style customer record owned by a principal.
type CustomerProfile struct {
	OwnedRecord

	CustomerID      string       `json:"user_id" db:"customer_id"`
	FullName        string       `json:"full_name" db:"full_name"`
	Username        string       `json:"username" db:"username"`
	Email           string       `json:"email" db:"email"`
	PhoneNumber     string       `json:"phone_number" db:"phone_number"`
	IsEmailVerified bool         `json:"is_email_verified" db:"is_email_verified"`
	Role            CustomerRole `json:"role" db:"role"`
	LastLoginIP     string       `json:"last_login_ip" db:"last_login_ip"`
}

// ProductCatalog is a catalog entry owned by a principal. The (owner,
// product_id) pair is unique among alive rows.
type ProductCatalog struct {
	OwnedRecord

	ProductID     string          `json:"product_id" db:"product_id"`
	ProductName   string          `json:"product_name" db:"product_name"`
	Category      string          `json:"category" db:"category"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Currency      Currency        `json:"currency" db:"currency"`
	InStock       bool            `json:"in_stock" db:"in_stock"`
	StockCount    int             `json:"stock_count" db:"stock_count"`
	ProductRating float64         `json:"product_rating" db:"product_rating"`
}

// OrderTransaction records a payment transaction. OrderID is globally unique.
type OrderTransaction struct {
	OwnedRecord

	OrderID              string          `json:"order_id" db:"order_id"`
	OrderAmount          decimal.Decimal `json:"order_amount" db:"order_amount"`
	PaymentMethod        PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentStatus        PaymentStatus   `json:"payment_status" db:"payment_status"`
	TransactionReference string          `json:"transaction_reference" db:"transaction_reference"`
	IsRefundable         bool            `json:"is_refundable" db:"is_refundable"`
	OrderDate            time.Time       `json:"order_date" db:"order_date"`
	DiscountApplied      float64         `json:"discount_applied" db:"discount_applied"`
}

// SystemLog is an API request/response audit entry. Written unconditionally by
// the logging middleware (a write failure is swallowed, never propagated) and
// compacted by the archiver once aged out.
type SystemLog struct {
	OwnedRecord

	LogID          string   `json:"log_id" db:"log_id"`
	ServiceName    string   `json:"service_name" db:"service_name"`
	Level          LogLevel `json:"log_level" db:"log_level"`
	Message        string   `json:"message" db:"message"`
	RequestPath    string   `json:"request_path" db:"request_path"`
	HTTPStatus     int      `json:"http_status" db:"http_status"`
	ResponseTimeMS *int     `json:"response_time_ms,omitempty" db:"response_time_ms"`
	UserIPAddress  string   `json:"user_ip_address,omitempty" db:"user_ip_address"`
	LoggedAt       time.Time `json:"logged_at" db:"logged_at"`
}

// FeatureUsageAnalytics is a per-feature usage event owned by a principal.
type FeatureUsageAnalytics struct {
	OwnedRecord

	EventID        string    `json:"event_id" db:"event_id"`
	FeatureName    string    `json:"feature_name" db:"feature_name"`
	APICallsMade   int       `json:"api_calls_made" db:"api_calls_made"`
	DataVolumeMB   float64   `json:"data_volume_mb" db:"data_volume_mb"`
	SuccessRate    float64   `json:"success_rate" db:"success_rate"`
	Throttled      bool      `json:"throttled" db:"throttled"`
	ClientApp      string    `json:"client_app" db:"client_app"`
	EventTimestamp time.Time `json:"event_timestamp" db:"event_timestamp"`
}

// CustomObject is a tenant-defined schema. The (tenant, api_name) pair is its
// identity.
type CustomObject struct {
	ID          string `json:"id" db:"id"`
	TenantID    string `json:"-" db:"tenant_id"`
	Name        string `json:"name" db:"name"`
	APIName     string `json:"api_name" db:"api_name"`
	Description string `json:"description,omitempty" db:"description"`

	IsActive       bool `json:"is_active" db:"is_active"`
	IsSystem       bool `json:"is_system" db:"is_system"`
	MaxRecords     int  `json:"max_records" db:"max_records"`
	AllowAPIAccess bool `json:"allow_api_access" db:"allow_api_access"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CustomField is a typed column declaration on a CustomObject.
type CustomField struct {
	ID             string        `json:"id" db:"id"`
	CustomObjectID string        `json:"-" db:"custom_object_id"`
	Name           string        `json:"name" db:"name"`
	APIName        string        `json:"api_name" db:"api_name"`
	DataType       FieldDataType `json:"data_type" db:"data_type"`

	IsRequired bool `json:"is_required" db:"is_required"`
	IsUnique   bool `json:"is_unique" db:"is_unique"`
	IsIndexed  bool `json:"is_indexed" db:"is_indexed"`

	DefaultValue *string          `json:"default_value,omitempty" db:"default_value"`
	MinValue     *decimal.Decimal `json:"min_value,omitempty" db:"min_value"`
	MaxValue     *decimal.Decimal `json:"max_value,omitempty" db:"max_value"`
	Regex        *string          `json:"regex,omitempty" db:"regex"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CustomObjectRecord is an instance of a tenant's CustomObject.
type CustomObjectRecord struct {
	ID            string       `json:"id" db:"id"`
	TenantID      string       `json:"-" db:"tenant_id"`
	ObjectAPIName string       `json:"object_api_name" db:"object_api_name"`
	Values        []FieldValue `json:"field_values" db:"-"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// EmailVerificationToken is a single-use token mailed at signup.
type EmailVerificationToken struct {
	UserID    string    `db:"user_id"`
	Token     string    `db:"token"`
	IsUsed    bool      `db:"is_used"`
	CreatedAt time.Time `db:"created_at"`
}

// PasswordResetToken is a single-use token for the password reset flow.
type PasswordResetToken struct {
	UserID    string    `db:"user_id"`
	Token     string    `db:"token"`
	IsUsed    bool      `db:"is_used"`
	CreatedAt time.Time `db:"created_at"`
}

// Subscription ties a principal to a paid plan period.
type Subscription struct {
	UserID        string             `json:"user_id" db:"user_id"`
	PlanName      PlanTier           `json:"plan" db:"plan_name"`
	Status        SubscriptionStatus `json:"status" db:"status"`
	ValidFrom     time.Time          `json:"valid_from" db:"valid_from"`
	ValidTill     time.Time          `json:"valid_till" db:"valid_till"`
	LastPaymentID string             `json:"-" db:"last_payment_id"`

	StripeCustomerID     string `json:"-" db:"stripe_customer_id"`
	StripeSubscriptionID string `json:"-" db:"stripe_subscription_id"`
}

// IsCurrent reports whether the subscription grants plan access at time now.
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.Status == SubStatusActive && !now.After(s.ValidTill)
}
