package config

import "fmt"

// PlanTier represents subscription tier levels
type PlanTier string

const (
	PlanFree     PlanTier = "FREE"
	PlanPro      PlanTier = "PRO"
	PlanBusiness PlanTier = "BUSINESS"
)

// BillingStatus represents the billing state of a user subscription
type BillingStatus string

const (
	BillingActive    BillingStatus = "active"
	BillingPastDue   BillingStatus = "past_due"
	BillingCanceled  BillingStatus = "canceled"
	BillingTrialing  BillingStatus = "trialing"
	BillingSuspended BillingStatus = "suspended"
)

// Unlimited is the sentinel value meaning "no cap" on a limit field
const Unlimited = -1

// PlanFeatures holds the boolean feature flags of a plan tier
type PlanFeatures struct {
	Watermark         bool // Output carries a Trayyy watermark
	Ads               bool // Ads are shown around the tool UI
	PriorityQueue     bool // Tasks skip ahead of free-tier tasks
	OCR               bool // OCR-backed tools are available
	CloudIntegrations bool // Import/export to cloud drives
}

// PlanLimits defines the resource limits for a plan tier
type PlanLimits struct {
	MaxFileSize     int64 // Per-file upload size limit in bytes
	MaxFilesAtOnce  int   // Maximum files in a single operation
	MaxDailyTasks   int   // Task rate limit per user per day
	MaxPagesPerFile int   // Page cap for paged formats (-1 = unlimited)
	Features        PlanFeatures
}

// DefaultPlanLimits returns the limits for the Trayyy plan tiers
var DefaultPlanLimits = map[PlanTier]PlanLimits{
	PlanFree: {
		MaxFileSize:     20 * 1024 * 1024, // 20 MB
		MaxFilesAtOnce:  3,
		MaxDailyTasks:   5,
		MaxPagesPerFile: 50,
		Features: PlanFeatures{
			Watermark: true,
			Ads:       true,
		},
	},
	PlanPro: {
		MaxFileSize:     200 * 1024 * 1024, // 200 MB
		MaxFilesAtOnce:  20,
		MaxDailyTasks:   50,
		MaxPagesPerFile: 500,
		Features: PlanFeatures{
			PriorityQueue: true,
		},
	},
	PlanBusiness: {
		MaxFileSize:     1024 * 1024 * 1024, // 1 GB
		MaxFilesAtOnce:  Unlimited,
		MaxDailyTasks:   Unlimited,
		MaxPagesPerFile: Unlimited,
		Features: PlanFeatures{
			PriorityQueue:     true,
			OCR:               true,
			CloudIntegrations: true,
		},
	},
}

// AllPlanTiers lists the known tiers in upgrade order
var AllPlanTiers = []PlanTier{PlanFree, PlanPro, PlanBusiness}

// GetPlanLimits returns the limits for a given tier, defaulting to FREE if unknown.
// Falling back to the most restrictive tier fails safe for unrecognized values.
func GetPlanLimits(tier PlanTier) PlanLimits {
	if limits, ok := DefaultPlanLimits[tier]; ok {
		return limits
	}
	return DefaultPlanLimits[PlanFree]
}

// IsValidTier checks if a tier is valid
func IsValidTier(tier PlanTier) bool {
	_, ok := DefaultPlanLimits[tier]
	return ok
}

// QuotaError represents a quota limit exceeded error
type QuotaError struct {
	Resource string
	Limit    int64
	Current  int64
	Message  string
}

func (e *QuotaError) Error() string {
	return e.Message
}

// NewQuotaError creates a new quota error
func NewQuotaError(resource string, limit, current int64, message string) *QuotaError {
	return &QuotaError{
		Resource: resource,
		Limit:    limit,
		Current:  current,
		Message:  message,
	}
}

// FormatMB renders a byte count as a whole-megabyte string for user-facing messages
func FormatMB(bytes int64) string {
	mb := float64(bytes) / (1024 * 1024)
	return fmt.Sprintf("%.0f MB", mb)
}
