package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskNotificationRedeliver = "notification.redeliver"

type NotificationRedeliverPayload struct {
	OutboxID       string `json:"outboxId"`
	NotificationID string `json:"notificationId"`
	Attempt        int    `json:"attempt"`
}

// TaskID identifies one enqueue of an outbox row.
func (p NotificationRedeliverPayload) TaskID() string {
	return fmt.Sprintf("redeliver:%s:%d", p.OutboxID, p.Attempt)
}

func NewNotificationRedeliverTask(payload NotificationRedeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationRedeliver, data), nil
}

func ParseNotificationRedeliverPayload(task *asynq.Task) (NotificationRedeliverPayload, error) {
	var payload NotificationRedeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationRedeliverPayload{}, err
	}
	return payload, nil
}
