package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/internal/store"
	"github.com/hugh/testforge/internal/validation"
)

// ConfigRecorder saves completed executions as agent_execution configs.
type ConfigRecorder struct {
	configs *store.ConfigService
}

func NewConfigRecorder(configs *store.ConfigService) *ConfigRecorder {
	return &ConfigRecorder{configs: configs}
}

func (c *ConfigRecorder) RecordExecution(ctx context.Context, exec Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("encoding execution: %w", err)
	}

	_, err = c.configs.Create(ctx, exec.UserID, store.ConfigInput{
		Name:        "Execution: " + exec.ID[:8],
		ConfigType:  models.ConfigTypeAgentExecution,
		Description: fmt.Sprintf("Agent: %s, Task: %s...", exec.Kind, validation.TruncateString(exec.Task, 50)),
		Data:        data,
	})
	return err
}

var _ Recorder = (*ConfigRecorder)(nil)
