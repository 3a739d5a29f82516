// Package agenttools is the bridge between the speech agent's tool calls and
// the coordination engine. Every tool takes loosely-typed arguments as the
// voice platform sends them, and answers with a JSON document the agent can
// read back into the conversation; engine failures are flattened into reason
// strings rather than surfaced as errors.
package agenttools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	callTaskRepo "nexus/database/repository/calltask"
	campaignRepo "nexus/database/repository/campaign"
	"nexus/models"
	"nexus/services/campaign"
	"nexus/services/coordination"
	"nexus/services/swarm"
	"nexus/utils"

	"go.uber.org/zap"
)

// Tool names as registered with the speech platform.
const (
	ToolCheckAvailability = "check_availability"
	ToolReportSlotOffer   = "report_slot_offer"
	ToolBookSlot          = "book_slot"
	ToolEndCall           = "end_call"
	ToolGetDistance       = "get_distance"
)

// toolTimeout bounds every tool invocation; a wedged store must not stall
// the live phone conversation.
const toolTimeout = 10 * time.Second

// Handler executes tool calls on behalf of in-flight call agents.
type Handler struct {
	Coordinator coordination.SlotCoordinator
	Campaigns   campaignRepo.CampaignRepository
	Tasks       callTaskRepo.CallTaskRepository
	States      *campaign.Service
}

func NewHandler(
	coordinator coordination.SlotCoordinator,
	campaigns campaignRepo.CampaignRepository,
	tasks callTaskRepo.CallTaskRepository,
	states *campaign.Service,
) *Handler {
	return &Handler{Coordinator: coordinator, Campaigns: campaigns, Tasks: tasks, States: states}
}

// DispatchToolCall routes one named tool invocation. The returned string is
// always a JSON object; the error is reserved for unknown tools.
func (h *Handler) DispatchToolCall(ctx context.Context, name string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	switch name {
	case ToolCheckAvailability:
		return h.checkAvailability(ctx, args)
	case ToolReportSlotOffer:
		return h.reportSlotOffer(ctx, args)
	case ToolBookSlot:
		return h.bookSlot(ctx, args)
	case ToolEndCall:
		return h.endCall(ctx, args)
	case ToolGetDistance:
		return h.getDistance(ctx, args)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (h *Handler) checkAvailability(ctx context.Context, args map[string]any) (string, error) {
	result, err := h.Coordinator.CheckAndHold(ctx, coordination.HoldRequest{
		UserID:      argString(args, "user_id"),
		CampaignID:  argString(args, "campaign_id"),
		CallTaskID:  argString(args, "call_task_id"),
		Date:        argString(args, "date"),
		Time:        argString(args, "time"),
		DurationMin: argInt(args, "duration_min"),
	})
	if err != nil {
		return toolError(err)
	}

	switch result.Status {
	case coordination.StatusHeld:
		return toolJSON(map[string]any{
			"status":                  "available",
			"hold_key":                result.HoldKey,
			"hold_expires_in_seconds": int(result.HoldExpiresIn.Seconds()),
		})
	case coordination.StatusConflict:
		return toolJSON(map[string]any{"status": "conflict", "conflicts": result.Conflicts})
	default:
		return toolJSON(map[string]any{"status": "soft_conflict", "held_by": result.HeldBy})
	}
}

func (h *Handler) reportSlotOffer(ctx context.Context, args map[string]any) (string, error) {
	campaignID := argString(args, "campaign_id")
	callTaskID := argString(args, "call_task_id")

	task, err := h.Tasks.GetByID(ctx, callTaskID)
	if err != nil {
		return toolError(fmt.Errorf("call task lookup failed: %w", err))
	}
	camp, err := h.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return toolError(fmt.Errorf("campaign lookup failed: %w", err))
	}

	offer := models.SlotOffer{
		Date:        utils.NormalizeDate(argString(args, "date")),
		Time:        utils.NormalizeTime(argString(args, "time")),
		DurationMin: argInt(args, "duration_min"),
		Doctor:      argString(args, "doctor"),
	}
	if offer.DurationMin <= 0 {
		offer.DurationMin = 30
	}

	score := swarm.MatchScore(offer, task.ProviderRating, task.DistanceKm, swarm.CampaignWeights(camp), time.Now())
	if err := h.Tasks.RecordOffer(ctx, callTaskID, offer, score); err != nil {
		return toolError(fmt.Errorf("failed to record offer: %w", err))
	}
	if _, err := h.States.MarkRanking(ctx, campaignID); err != nil {
		utils.GetLogger().Warn("Failed to advance campaign to ranking",
			zap.String("campaignID", campaignID), zap.Error(err))
	}

	return toolJSON(map[string]any{
		"status": "recorded",
		"score":  score,
		"date":   offer.Date,
		"time":   offer.Time,
	})
}

func (h *Handler) bookSlot(ctx context.Context, args map[string]any) (string, error) {
	campaignID := argString(args, "campaign_id")
	callTaskID := argString(args, "call_task_id")

	task, err := h.Tasks.GetByID(ctx, callTaskID)
	if err != nil {
		return toolError(fmt.Errorf("call task lookup failed: %w", err))
	}

	// Every hold the swarm accumulated is released once the booking lands,
	// not just the winning task's.
	var releaseKeys []string
	if siblings, err := h.Tasks.GetByCampaign(ctx, campaignID); err == nil {
		for _, t := range siblings {
			releaseKeys = append(releaseKeys, t.HoldKeys...)
		}
	} else {
		releaseKeys = task.HoldKeys
	}

	result, err := h.Coordinator.ConfirmAndBook(ctx, coordination.BookingRequest{
		CampaignID:    campaignID,
		CallTaskID:    callTaskID,
		UserID:        argString(args, "user_id"),
		ProviderID:    task.ProviderID,
		ProviderName:  task.ProviderName,
		ProviderPhone: task.ProviderPhone,
		Date:          argString(args, "date"),
		Time:          argString(args, "time"),
		DurationMin:   argInt(args, "duration_min"),
		DoctorName:    argString(args, "doctor"),
		ReleaseKeys:   releaseKeys,
	})
	if err != nil {
		return toolError(err)
	}

	// The winning task wraps up here; the kill broadcast already told the
	// losers to stand down.
	if err := h.Coordinator.EndCall(ctx, campaignID, callTaskID, models.CallTaskCompleted, nil); err != nil {
		utils.GetLogger().Warn("Failed to close winning call task after booking",
			zap.String("callTaskID", callTaskID), zap.Error(err))
	}

	return toolJSON(map[string]any{
		"status":               "booked",
		"appointment_id":       result.AppointmentID,
		"calendar_sync_queued": result.CalendarSyncQueued,
	})
}

func (h *Handler) endCall(ctx context.Context, args map[string]any) (string, error) {
	campaignID := argString(args, "campaign_id")
	callTaskID := argString(args, "call_task_id")

	status := models.CallTaskStatus(argString(args, "outcome"))
	if status == "" {
		status = models.CallTaskCompleted
	}

	var holdKeys []string
	if task, err := h.Tasks.GetByID(ctx, callTaskID); err == nil {
		holdKeys = task.HoldKeys
	}

	if err := h.Coordinator.EndCall(ctx, campaignID, callTaskID, status, holdKeys); err != nil {
		return toolError(err)
	}
	return toolJSON(map[string]any{"status": "ok"})
}

func (h *Handler) getDistance(ctx context.Context, args map[string]any) (string, error) {
	task, err := h.Tasks.GetByID(ctx, argString(args, "call_task_id"))
	if err != nil {
		return toolError(fmt.Errorf("call task lookup failed: %w", err))
	}
	return toolJSON(map[string]any{
		"status":          "ok",
		"distance_km":     task.DistanceKm,
		"travel_time_min": task.TravelTimeMin,
	})
}

// --- argument and response helpers ---

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// argInt tolerates the JSON number types the voice platform actually sends:
// float64 from decoding, and the occasional stringified integer.
func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func toolJSON(payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error encoding tool response: %w", err)
	}
	return string(b), nil
}

func toolError(err error) (string, error) {
	return toolJSON(map[string]any{"status": "error", "reason": coordination.FailureReason(err)})
}
