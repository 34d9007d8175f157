package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pennywise-hq/budgetd/pkg/cli"
	"pennywise-hq/budgetd/pkg/config"
	"pennywise-hq/budgetd/pkg/expense"
	"pennywise-hq/budgetd/pkg/preference"
	"pennywise-hq/budgetd/pkg/queue"
)

func TestVersionCommandOutput(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	out := buf.String()
	for _, want := range []string{"Pennywise " + Version, "Git Commit:", "Go Version:"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"run": false, "worker": false, "queue": false, "cache": false, "version": false, "completion": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCacheClearRejectsPatternAndUser(t *testing.T) {
	cacheFlags.pattern = "budget:*"
	cacheFlags.user = "u1"
	defer func() { cacheFlags.pattern, cacheFlags.user = "", "" }()

	err := runCacheClear(cacheClearCmd, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("exit code = %d, want %d", code, cli.ExitConfig)
	}
}

func TestQueueCleanRejectsUnknownStatus(t *testing.T) {
	queueFlags.status = "waiting"
	defer func() { queueFlags.status = "completed" }()

	err := runQueueClean(queueCleanCmd, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("exit code = %d, want %d", code, cli.ExitConfig)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "pennywise.db")
	cfg.Cache.Backend = "memory"
	cfg.Queue.Backend = "memory"
	cfg.Telemetry.Logging.Level = "error"
	return cfg
}

func TestAppWiresExpenseAddToAlertQueue(t *testing.T) {
	a, err := newApp(testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	svc, err := a.buildExpenses(ctx)
	if err != nil {
		t.Fatalf("buildExpenses() error = %v", err)
	}

	pref := preference.Defaults("u1", "INR")
	pref.Email = "u1@example.com"
	pref.Budget = 100
	if err := a.preferences.Save(ctx, pref); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	res, err := svc.Add(ctx, expense.User{ID: "u1", Email: "u1@example.com"}, expense.Input{
		Title:    "Groceries",
		Amount:   60,
		Currency: "INR",
		Category: "Food",
		Date:     time.Now(),
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if res.BudgetStatus.CurrentPeriodTotal != 60 {
		t.Errorf("CurrentPeriodTotal = %v, want 60", res.BudgetStatus.CurrentPeriodTotal)
	}

	stats, err := a.queue.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Waiting != 1 {
		t.Errorf("waiting jobs = %d, want 1", stats.Waiting)
	}

	checker := a.healthChecker()
	if got := len(checker.ListChecks()); got != 3 {
		t.Errorf("registered checks = %d, want 3", got)
	}
}

func TestAppWorkerDeliversAlert(t *testing.T) {
	a, err := newApp(testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	w, err := a.buildWorker(ctx)
	if err != nil {
		t.Fatalf("buildWorker() error = %v", err)
	}

	payload := map[string]any{
		"email":   "u1@example.com",
		"subject": "Budget Alert - 50% of your monthly budget reached",
		"body":    "<p>hi</p>",
		"userId":  "u1",
	}
	if _, err := a.queue.Enqueue(ctx, "budget-alert", payload, queue.Options{Attempts: 1}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	ok, err := w.ProcessOne(ctx)
	if err != nil || !ok {
		t.Fatalf("ProcessOne() = %v, %v", ok, err)
	}
	stats, _ := a.queue.Stats(ctx)
	if stats.Completed != 1 {
		t.Errorf("completed jobs = %d, want 1", stats.Completed)
	}
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "etcd"
	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	if _, err := a.openStore(context.Background()); cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("openStore() error = %v, want config error", err)
	}
}
