package access

import (
	"fmt"

	"github.com/trayyy/trayyy/backend-go/internal/config"
)

// Decision is the outcome of a plan-limit check. Limit violations are normal
// return values, never errors: the handler layer turns a denied decision into
// an upgrade prompt, not a fault.
type Decision struct {
	Allowed         bool     `json:"allowed"`
	Kind            string   `json:"kind,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	UpgradeTriggers []string `json:"upgrade_triggers,omitempty"`
}

// Denial kinds; the HTTP layer maps them to status codes
const (
	DenyPlanLimit  = "plan_limit"
	DenyFeature    = "feature"
	DenyDailyLimit = "daily_limit"
)

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(kind, reason, trigger string) Decision {
	return Decision{
		Allowed:         false,
		Kind:            kind,
		Reason:          reason,
		UpgradeTriggers: []string{trigger},
	}
}

// Check compares a prospective operation against the tier's plan limits.
// Checks run in the order a user discovers constraints while uploading:
// file size, then file count, then page count. The first violation
// short-circuits; simultaneous violations are not accumulated.
// A pageCount of zero or less means "not supplied" and skips the page check.
// Pure: no side effects, no I/O.
func Check(tier config.PlanTier, fileSizeBytes int64, fileCount, pageCount int) Decision {
	limits := config.GetPlanLimits(tier)

	if limits.MaxFileSize >= 0 && fileSizeBytes > limits.MaxFileSize {
		return deny(
			DenyPlanLimit,
			fmt.Sprintf("File size exceeds the %s plan limit", tier),
			fmt.Sprintf("File size %s exceeds the %s limit of the %s plan",
				config.FormatMB(fileSizeBytes), config.FormatMB(limits.MaxFileSize), tier),
		)
	}

	if limits.MaxFilesAtOnce >= 0 && fileCount > limits.MaxFilesAtOnce {
		return deny(
			DenyPlanLimit,
			fmt.Sprintf("Too many files for the %s plan", tier),
			fmt.Sprintf("%d files exceed the %d-file batch limit of the %s plan",
				fileCount, limits.MaxFilesAtOnce, tier),
		)
	}

	if pageCount > 0 && limits.MaxPagesPerFile >= 0 && pageCount > limits.MaxPagesPerFile {
		return deny(
			DenyPlanLimit,
			fmt.Sprintf("Page count exceeds the %s plan limit", tier),
			fmt.Sprintf("%d pages exceed the %d-page limit of the %s plan",
				pageCount, limits.MaxPagesPerFile, tier),
		)
	}

	return allow()
}

// Feature identifies a plan feature flag gate
type Feature string

const (
	FeatureOCR               Feature = "ocr"
	FeaturePriorityQueue     Feature = "priority_queue"
	FeatureCloudIntegrations Feature = "cloud_integrations"
)

// CheckFeature gates feature-flagged tools on the caller's tier
func CheckFeature(tier config.PlanTier, feature Feature) Decision {
	limits := config.GetPlanLimits(tier)

	enabled := false
	switch feature {
	case FeatureOCR:
		enabled = limits.Features.OCR
	case FeaturePriorityQueue:
		enabled = limits.Features.PriorityQueue
	case FeatureCloudIntegrations:
		enabled = limits.Features.CloudIntegrations
	}

	if !enabled {
		return deny(
			DenyFeature,
			fmt.Sprintf("This tool is not available on the %s plan", tier),
			fmt.Sprintf("The %s feature requires a plan upgrade from %s", feature, tier),
		)
	}

	return allow()
}
