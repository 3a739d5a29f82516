package swarm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nexus/config"
	campaignRepo "nexus/database/repository/campaign"
	callTaskRepo "nexus/database/repository/calltask"
	"nexus/models"
	"nexus/services/campaign"
	"nexus/services/coordination"
	"nexus/services/directory"
	"nexus/services/telephony"
	"nexus/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// agentLifetime bounds how long a worker stays subscribed to its campaign's
// kill channel. Campaigns stuck past this are the reaper's problem.
const agentLifetime = 10 * time.Minute

// Dispatcher launches a swarm of call agents for a campaign: one CallTask and
// one worker goroutine per candidate provider. It returns as soon as the
// swarm is airborne; progress is observed through the durable store.
type Dispatcher struct {
	Cfg       config.Config
	Campaigns campaignRepo.CampaignRepository
	Tasks     callTaskRepo.CallTaskRepository
	States    *campaign.Service
	Directory directory.Service
	Dialer    telephony.Dialer
	Locks     coordination.LockStore

	// dialLimiter staggers outbound call placement so a burst of workers
	// does not hammer the telephony provider.
	dialLimiter *rate.Limiter
}

func NewDispatcher(
	cfg config.Config,
	campaigns campaignRepo.CampaignRepository,
	tasks callTaskRepo.CallTaskRepository,
	states *campaign.Service,
	dir directory.Service,
	dialer telephony.Dialer,
	locks coordination.LockStore,
) *Dispatcher {
	return &Dispatcher{
		Cfg:         cfg,
		Campaigns:   campaigns,
		Tasks:       tasks,
		States:      states,
		Directory:   dir,
		Dialer:      dialer,
		Locks:       locks,
		dialLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 3),
	}
}

// Dispatch creates the campaign, resolves candidate providers and launches
// one worker per provider. The returned plan lists exactly what was dialed.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, req models.CampaignRequest) (*models.SwarmPlan, error) {
	logger := utils.GetLogger()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("error dispatching swarm: user id is required")
	}
	if strings.TrimSpace(req.Prompt) == "" && strings.TrimSpace(req.ServiceType) == "" {
		return nil, fmt.Errorf("error dispatching swarm: prompt or service type is required")
	}

	now := time.Now().UTC()
	camp := &models.Campaign{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         models.CampaignCreated,
		ServiceType:    resolveServiceType(req),
		QueryText:      req.Prompt,
		MaxRadiusKm:    refMaxKm,
		PreferredDate:  utils.NormalizeDate(req.TargetDate),
		PreferredTime:  utils.NormalizeTime(req.TargetTime),
		WeightTime:     DefaultWeights.Earliest,
		WeightRating:   DefaultWeights.Rating,
		WeightDistance: DefaultWeights.Proximity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.Campaigns.Create(ctx, camp); err != nil {
		return nil, fmt.Errorf("error creating campaign: %w", err)
	}
	if _, err := d.States.Advance(ctx, camp.ID, models.CampaignProviderLookup, models.CampaignCreated); err != nil {
		return nil, err
	}

	providers, err := d.Directory.Search(ctx, camp.ServiceType, req.UserLocation, d.maxAgents())
	if err != nil || len(providers) == 0 {
		if _, ferr := d.States.Fail(ctx, camp.ID); ferr != nil {
			logger.Error("Failed to mark campaign failed after empty provider lookup",
				zap.String("campaignID", camp.ID), zap.Error(ferr))
		}
		if err != nil {
			return nil, fmt.Errorf("error resolving providers for campaign %s: %w", camp.ID, err)
		}
		return nil, fmt.Errorf("no providers found for service type %q", camp.ServiceType)
	}
	providers = d.applyCallPolicy(providers)

	tasks := make([]models.CallTask, 0, len(providers))
	for _, p := range providers {
		tasks = append(tasks, models.CallTask{
			ID:             uuid.NewString(),
			CampaignID:     camp.ID,
			ProviderID:     p.ID,
			ProviderName:   p.Name,
			ProviderPhone:  p.Phone,
			ProviderRating: p.Rating,
			DistanceKm:     p.DistanceKm,
			TravelTimeMin:  p.TravelTimeMin,
			Status:         models.CallTaskPending,
			HoldKeys:       []string{},
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if err := d.Tasks.CreateMany(ctx, tasks); err != nil {
		return nil, fmt.Errorf("error creating call tasks for campaign %s: %w", camp.ID, err)
	}
	if err := d.Campaigns.MarkDialing(ctx, camp.ID, camp.ServiceType); err != nil {
		return nil, fmt.Errorf("error marking campaign %s dialing: %w", camp.ID, err)
	}

	plan := &models.SwarmPlan{CampaignID: camp.ID, Providers: providers, TaskIDs: make([]string, 0, len(tasks))}
	for i := range tasks {
		plan.TaskIDs = append(plan.TaskIDs, tasks[i].ID)
		go d.runAgent(camp, tasks[i])
	}

	logger.Info("Swarm dispatched",
		zap.String("campaignID", camp.ID),
		zap.String("serviceType", camp.ServiceType),
		zap.Int("agents", len(tasks)))
	return plan, nil
}

func (d *Dispatcher) maxAgents() int {
	if d.Cfg.MaxCallAgents > 0 {
		return d.Cfg.MaxCallAgents
	}
	return 15
}

// applyCallPolicy enforces the agent cap, and in mock-human mode shrinks the
// swarm further and rewrites dial targets round-robin over the configured
// test numbers so no real business ever gets called.
func (d *Dispatcher) applyCallPolicy(providers []models.Provider) []models.Provider {
	limit := d.maxAgents()
	if d.Cfg.Mode == config.ModeMockHuman {
		if d.Cfg.MockHumanMaxCalls > 0 && d.Cfg.MockHumanMaxCalls < limit {
			limit = d.Cfg.MockHumanMaxCalls
		}
		if phones := d.Cfg.TargetPhones(); len(phones) > 0 {
			for i := range providers {
				providers[i].Phone = phones[i%len(phones)]
			}
		}
	}
	if len(providers) > limit {
		providers = providers[:limit]
	}
	return providers
}

// serviceKeywords maps prompt words to a directory service type, used only
// when the request does not name one outright.
var serviceKeywords = []struct{ keyword, serviceType string }{
	{"dentist", "dentist"},
	{"dental", "dentist"},
	{"tooth", "dentist"},
	{"mechanic", "mechanic"},
	{"car", "mechanic"},
	{"hair", "hair salon"},
	{"barber", "barber"},
	{"doctor", "doctor"},
	{"physio", "physiotherapist"},
	{"vet", "veterinarian"},
}

func resolveServiceType(req models.CampaignRequest) string {
	if s := strings.TrimSpace(req.ServiceType); s != "" {
		return strings.ToLower(s)
	}
	prompt := strings.ToLower(req.Prompt)
	for _, kw := range serviceKeywords {
		if strings.Contains(prompt, kw.keyword) {
			return kw.serviceType
		}
	}
	return "dentist"
}
