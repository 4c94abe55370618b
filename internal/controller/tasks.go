package controller

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/yuriy-kovalchuk/ddnsd/internal/config"
	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

// TasksFromConfig builds one task per configured entry. Every entry is
// attempted so that all provider errors are reported together.
func TasksFromConfig(ctx context.Context, log logr.Logger, cfg *config.Config) ([]Task, error) {
	tasks := make([]Task, 0, len(cfg.Entries))
	var errs []error
	for i := range cfg.Entries {
		entry := &cfg.Entries[i]
		p, err := dns.NewProvider(ctx, entry.Provider.Type, log.WithName("dns-"+entry.Provider.Type), entry.Domain, entry.Provider.Settings)
		if err != nil {
			errs = append(errs, fmt.Errorf("entries[%d] (%s): %w", i, entry.Domain, err))
			continue
		}
		tasks = append(tasks, Task{
			Domain:   entry.Domain,
			Provider: p,
			Interval: entry.Interval(),
		})
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, err
	}
	return tasks, nil
}
