package dashboard

import (
	"context"
	"maps"
	"slices"

	"radiata.klederson.com/internal/config"
	"radiata.klederson.com/internal/ui"
)

// Snapshot polls every panel once and renders a single width x height
// frame without starting a terminal program.
func Snapshot(ctx context.Context, opts Options, width, height int) (string, error) {
	m, err := New(opts)
	if err != nil {
		return "", err
	}
	m.width, m.height = width, height
	s := m.shared
	_ = s.restart(s.sess.source)

	if err := s.sess.source.Health(ctx); err != nil {
		m.link = ui.LinkDown
		s.lastErr = err
		return m.View(), nil
	}
	m.link = ui.LinkLive

	if msg, ok := fetchStatic(s.sess.source, s.sess.epoch, config.RequestTimeout)().(staticMsg); ok {
		s.sess.data.static.merge(msg.info)
	}
	_ = s.sess.startGPUs(s.opts.Intervals, s.opts.GPUHistory)

	for _, key := range slices.Sorted(maps.Keys(s.sess.jobs)) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		b := s.sess.jobs[key]
		res := b.job.Run()
		b.apply(res)
		if res.OK {
			s.updated = res.At
		}
	}
	return m.View(), nil
}
