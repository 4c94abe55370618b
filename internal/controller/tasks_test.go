package controller

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/ddnsd/internal/config"
	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

func init() {
	dns.Register("tasks-test", func(_ context.Context, _ logr.Logger, domain string, settings map[string]string) (dns.Provider, error) {
		if settings["fail"] == "true" {
			return nil, errors.New("refused")
		}
		return &mockDNSProvider{current: netip.MustParseAddr("1.2.3.4")}, nil
	})
}

func TestTasksFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
global:
  interval_seconds: 120
entries:
  - domain: a.example.com
    provider:
      type: tasks-test
  - domain: b.example.com
    interval_seconds: 30
    provider:
      type: tasks-test
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tasks, err := TasksFromConfig(context.Background(), logr.Discard(), cfg)
	if err != nil {
		t.Fatalf("TasksFromConfig: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Domain != "a.example.com" || tasks[0].Interval != 0 {
		t.Errorf("unexpected first task: %+v", tasks[0])
	}
	if tasks[1].Domain != "b.example.com" || tasks[1].Interval != 30*time.Second {
		t.Errorf("unexpected second task: %+v", tasks[1])
	}
}

func TestTasksFromConfig_ReportsEveryFailure(t *testing.T) {
	cfg, err := config.Parse([]byte(`
entries:
  - domain: a.example.com
    provider:
      type: nope
  - domain: b.example.com
    provider:
      type: tasks-test
      fail: "true"
  - domain: c.example.com
    provider:
      type: tasks-test
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	_, err = TasksFromConfig(context.Background(), logr.Discard(), cfg)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, dns.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider in %v", err)
	}
	for _, want := range []string{"a.example.com", "b.example.com"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}
