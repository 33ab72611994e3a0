package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeMigrateSkills = "resume:migrate_skills"
)

// MigrateSkillsPayload 描述一次技能字段迁移。BatchSize 为 0 时使用 worker 的默认配置。
type MigrateSkillsPayload struct {
	BatchSize     int    `json:"batch_size,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// NewMigrateSkillsTask 构造技能字段迁移任务。一小时内重复入队会被拒绝。
func NewMigrateSkillsTask(batchSize int, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(MigrateSkillsPayload{
		BatchSize:     batchSize,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMigrateSkills, payload, asynq.MaxRetry(3), asynq.Unique(time.Hour)), nil
}

// ParseMigrateSkillsPayload 解析任务载荷。
func ParseMigrateSkillsPayload(task *asynq.Task) (MigrateSkillsPayload, error) {
	var payload MigrateSkillsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", TypeMigrateSkills, err)
	}
	if payload.BatchSize < 0 {
		return payload, fmt.Errorf("invalid batch size %d", payload.BatchSize)
	}
	return payload, nil
}
