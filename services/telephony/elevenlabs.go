package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nexus/config"
	"nexus/utils"

	"go.uber.org/zap"
)

const (
	outboundTimeout = 30 * time.Second
	outboundURL     = "https://api.elevenlabs.io/v1/convai/twilio/outbound-call"
)

// ElevenLabsDialer places outbound calls through the ElevenLabs
// conversational agent over Twilio.
type ElevenLabsDialer struct {
	apiKey       string
	agentID      string
	agentPhoneID string
	http         *http.Client
}

func NewElevenLabsDialer(cfg config.Config) *ElevenLabsDialer {
	return &ElevenLabsDialer{
		apiKey:       cfg.ElevenLabsAPIKey,
		agentID:      cfg.ElevenLabsAgentID,
		agentPhoneID: cfg.ElevenLabsAgentPhoneID,
		http:         &http.Client{Timeout: outboundTimeout},
	}
}

func (d *ElevenLabsDialer) PlaceCall(ctx context.Context, req DialRequest) error {
	if d.agentID == "" || d.agentPhoneID == "" {
		return fmt.Errorf("telephony not configured: agent id or agent phone number id missing")
	}
	if req.ToNumber == "" {
		return fmt.Errorf("no dial number for call task %s", req.CallTaskID)
	}

	targetDate := req.TargetDate
	if targetDate == "" {
		targetDate = time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	}
	targetTime := req.TargetTime
	if targetTime == "" {
		targetTime = "as soon as possible"
	}

	payload := map[string]interface{}{
		"agent_id":              d.agentID,
		"agent_phone_number_id": d.agentPhoneID,
		"to_number":             req.ToNumber,
		"conversation_initiation_client_data": map[string]interface{}{
			"dynamic_variables": map[string]string{
				"campaign_id":  req.CampaignID,
				"call_task_id": req.CallTaskID,
				"user_id":      req.UserID,
				"service_type": req.ServiceType,
				"target_date":  targetDate,
				"target_time":  targetTime,
				"timezone":     req.Timezone,
			},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbound payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, outboundURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("xi-api-key", d.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("outbound call request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("outbound call returned %d: %s", resp.StatusCode, string(body))
	}

	utils.GetLogger().Info("outbound call placed",
		zap.String("campaignId", req.CampaignID),
		zap.String("callTaskId", req.CallTaskID),
	)
	return nil
}
