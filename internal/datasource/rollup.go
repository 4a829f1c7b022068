package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"covidqc/internal/frame"
	"covidqc/internal/loaders"
)

// rollup concatenates the three county feeds and sums the county metrics
// per (state, source). Groups stay separate per source tag.
func (d *DataSource) rollup(ctx context.Context) (*frame.Frame, error) {
	feeds := []struct {
		name Name
		get  func(context.Context) *frame.Frame
	}{
		{CDS, d.CDSCounties},
		{CSBS, d.CSBSCounties},
		{NYT, d.NYTCounties},
	}

	var frames []*frame.Frame
	var failed []string
	for _, feed := range feeds {
		f := feed.get(ctx)
		if f == nil {
			failed = append(failed, string(feed.name))
			continue
		}
		frames = append(frames, f)
	}
	if len(failed) > 0 {
		if err := ctx.Err(); errors.Is(err, context.Canceled) {
			return nil, err
		}
		d.logger.WarnContext(ctx, "Could not load datasets for "+strings.Join(failed, ","),
			slog.Any("failed", failed))
		return nil, errCountiesUnavailable
	}

	out, err := combine(frames)
	if err != nil {
		d.log.Warning("Could not combine counties datasets", err)
		return nil, fmt.Errorf("%w: %v", errCombineFailed, err)
	}
	return out, nil
}

func combine(frames []*frame.Frame) (*frame.Frame, error) {
	long, err := frame.Concat(frames...)
	if err != nil {
		return nil, err
	}
	out, err := long.GroupBySum([]string{"state", "source"}, loaders.CountyMetrics)
	if err != nil {
		return nil, err
	}
	out.FillNaN(0)
	if err := out.AsInt(loaders.CountyMetrics...); err != nil {
		return nil, err
	}
	return out, nil
}
