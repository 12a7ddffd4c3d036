package hardware

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Coalesce wraps s so concurrent IsEnough calls share one reading.
// A caller whose context ends stops waiting; the reading continues for
// the others.
func Coalesce(s WaterSensor) WaterSensor {
	if _, ok := s.(*coalescedSensor); ok {
		return s
	}
	return &coalescedSensor{sensor: s}
}

type coalescedSensor struct {
	sensor WaterSensor
	group  singleflight.Group
}

const coalesceKey = "water-level"

func (c *coalescedSensor) IsEnough(ctx context.Context) (bool, error) {
	ch := c.group.DoChan(coalesceKey, func() (any, error) {
		// Detached so one caller giving up does not fail the shared reading.
		return c.sensor.IsEnough(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
