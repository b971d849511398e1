// Package pipeline wires the generator and the fraud classifier stages into
// runnable pipelines for the schedulers.
package pipeline

import (
	"fmt"
	"strconv"

	"github.com/JonMunkholm/synthdata/internal/scheduler"
)

// Pipeline ids, shared with the external scheduler's DAG ids.
const (
	GeneratorID = "synthetic_db_generator"
	FraudID     = "fraud_detection_ml_pipeline"
)

// Registry is the part of the local scheduler pipelines register with.
type Registry interface {
	Register(name string, fn scheduler.PipelineFunc)
}

// confInt reads an integer from a run conf. JSON numbers arrive as float64.
func confInt(conf map[string]any, key string) (int64, bool, error) {
	v, ok := conf[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case float64:
		return int64(n), true, nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("conf %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, false, fmt.Errorf("conf %s: unsupported type %T", key, v)
	}
}

func confString(conf map[string]any, key string) string {
	s, _ := conf[key].(string)
	return s
}
