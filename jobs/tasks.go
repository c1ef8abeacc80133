package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpireStaleQuotes sweeps quotes whose validity has ended.
	TaskExpireStaleQuotes = "quotes:expire_stale"
	// TaskFinanceProvision provisions chart of accounts and finance accounts.
	TaskFinanceProvision = "finance:provision"
)

// ExpireQuotesPayload limits the sweep to some tenants. Empty means all.
type ExpireQuotesPayload struct {
	TenantIDs []int64 `json:"tenant_ids,omitempty"`
}

// ProvisionPayload lists tenants to provision. Empty means all.
type ProvisionPayload struct {
	TenantIDs []int64 `json:"tenant_ids,omitempty"`
}

// NewExpireQuotesTask builds an expiry sweep task.
func NewExpireQuotesTask(payload ExpireQuotesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpireStaleQuotes, data), nil
}

// NewProvisionTask builds a batch provisioning task.
func NewProvisionTask(payload ProvisionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFinanceProvision, data), nil
}

func decodePayload(t *asynq.Task, target any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), target); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
