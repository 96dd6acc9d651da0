package telemetry

import (
	"context"
	"fmt"
	"strconv"

	redis_ipc "github.com/rescoot/redis-ipc"
)

// StatusKey is the Redis hash holding the latest snapshot.
const StatusKey = "smartpot"

// RedisSink writes snapshots to the status hash and announces them on the matching channel.
type RedisSink struct {
	client *redis_ipc.Client
}

// NewRedisSink creates a sink on an existing client.
func NewRedisSink(client *redis_ipc.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (r *RedisSink) Name() string { return "redis" }

// Publish writes the snapshot in one transaction.
func (r *RedisSink) Publish(ctx context.Context, s Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := r.client.NewTxGroup("smartpot-status")
	for _, f := range fields(s) {
		tx.Add("HSET", StatusKey, f[0], f[1])
	}
	tx.Add("PUBLISH", StatusKey, "status")

	if _, err := tx.Exec(); err != nil {
		return fmt.Errorf("failed to write status hash: %w", err)
	}
	return nil
}

// fields returns the hash fields of a snapshot in a fixed order.
func fields(s Snapshot) [][2]string {
	return [][2]string{
		{"temperature", strconv.Itoa(s.Temperature)},
		{"unit", s.Unit},
		{"moisture", strconv.Itoa(s.Moisture)},
		{"threshold", strconv.Itoa(s.Threshold)},
		{"water-low", strconv.FormatBool(s.WaterLow)},
		{"pumping", strconv.FormatBool(s.Pumping)},
		{"pump-runs", strconv.Itoa(s.PumpRuns)},
		{"display", s.Display},
		{"updated", strconv.FormatInt(s.Time.Unix(), 10)},
	}
}
