package coordination

import (
	"fmt"
	"strings"
	"time"
)

const (
	// HoldTTL bounds a soft slot hold. A crashed worker can never block a
	// slot past this window.
	HoldTTL = 180 * time.Second

	// BookingLockTTL bounds the per-campaign booking lock. It is left to
	// expire after a successful booking as a guard against a delayed
	// duplicate attempt.
	BookingLockTTL = 60 * time.Second

	// OpTimeout bounds every coordination call against the stores.
	OpTimeout = 10 * time.Second
)

// Kill channel payloads.
const (
	KillConfirm = "confirm"
	KillCancel  = "cancel"
)

// HoldKey identifies the soft hold for one (user, date, time) tuple.
func HoldKey(userID, date, timeOfDay string) string {
	return fmt.Sprintf("hold:%s:%s:%s", userID, date, timeOfDay)
}

// HoldValue records which campaign and call task own a hold.
func HoldValue(campaignID, callTaskID string) string {
	return campaignID + ":" + callTaskID
}

// HolderCampaign extracts the campaign id from a hold value.
func HolderCampaign(value string) string {
	if i := strings.Index(value, ":"); i > 0 {
		return value[:i]
	}
	return "other_campaign"
}

// BookingLockKey identifies the per-campaign booking mutual-exclusion key.
func BookingLockKey(campaignID string) string {
	return fmt.Sprintf("lock:campaign:%s:booked", campaignID)
}

// KillChannel is the pub/sub topic notifying a campaign's workers that the
// campaign reached a terminal outcome.
func KillChannel(campaignID string) string {
	return "kill:" + campaignID
}
