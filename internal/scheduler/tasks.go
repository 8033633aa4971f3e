package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskFollowUpSnoozeExpired = "followup.snooze.expired"

type FollowUpSnoozeExpiredPayload struct {
	LeadID string `json:"leadId"`
}

func NewFollowUpSnoozeExpiredTask(payload FollowUpSnoozeExpiredPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowUpSnoozeExpired, data), nil
}

func ParseFollowUpSnoozeExpiredPayload(task *asynq.Task) (FollowUpSnoozeExpiredPayload, error) {
	var payload FollowUpSnoozeExpiredPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowUpSnoozeExpiredPayload{}, err
	}
	return payload, nil
}
