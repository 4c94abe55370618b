package controller

import (
	"context"
	"net/netip"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

// Task pairs a managed domain with the provider that publishes it.
type Task struct {
	Domain   string
	Provider dns.Provider
	// Interval overrides the scheduler's interval for this task when non-zero.
	Interval time.Duration
}

// Status is the result of reconciling one domain in one cycle.
type Status int

// Possible values for Status.
const (
	StatusUpToDate Status = iota
	StatusUpdated
	StatusUpdateFailed
	StatusQueryFailed
)

func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusUpdated:
		return "updated"
	case StatusUpdateFailed:
		return "update-failed"
	case StatusQueryFailed:
		return "query-failed"
	default:
		return "unknown"
	}
}

// Outcome records what happened to one domain in one cycle.
type Outcome struct {
	Domain    string
	Status    Status
	Published netip.Addr
	Machine   netip.Addr
	// Err is a *dns.QueryError or *dns.UpdateError for failed statuses.
	Err error
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool {
	return o.Status == StatusQueryFailed || o.Status == StatusUpdateFailed
}

// Reconcile compares the address published for task.Domain with machineIP and
// upserts the record when they differ. It keeps no state between calls.
func Reconcile(ctx context.Context, log logr.Logger, task Task, machineIP netip.Addr) Outcome {
	out := Outcome{Domain: task.Domain, Machine: machineIP}

	log.V(1).Info("checking published address")
	published, err := task.Provider.GetCurrent(ctx)
	if err != nil {
		out.Status = StatusQueryFailed
		out.Err = &dns.QueryError{Domain: task.Domain, Err: err}
		return out
	}
	out.Published = published

	log.V(1).Info("compared addresses", "current", published.String(), "machine", machineIP.String())
	if published == machineIP {
		out.Status = StatusUpToDate
		return out
	}

	log.Info("updating record", "from", published.String(), "to", machineIP.String())
	if err := task.Provider.UpdateDNSRecord(ctx, machineIP); err != nil {
		out.Status = StatusUpdateFailed
		out.Err = &dns.UpdateError{Domain: task.Domain, IP: machineIP, Err: err}
		return out
	}
	out.Status = StatusUpdated
	return out
}
