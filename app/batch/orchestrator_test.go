package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
)

func TestRunCountsSuccessesAndFailures(t *testing.T) {
	units := make([]Unit, 0, 10)
	for i := 0; i < 10; i++ {
		ref := strconv.Itoa(i)
		fail := i == 3
		units = append(units, Unit{
			Ref: ref,
			Run: func(context.Context) error {
				if fail {
					return errors.New("declined")
				}
				return nil
			},
		})
	}

	result := NewOrchestrator(4).Run(context.Background(), "swap_price", units)

	if result.Total != 10 {
		t.Fatalf("expected total=10, got %d", result.Total)
	}
	if result.Succeeded != 9 {
		t.Fatalf("expected succeeded=9, got %d", result.Succeeded)
	}
	if result.Failed != 1 {
		t.Fatalf("expected failed=1, got %d", result.Failed)
	}
	if msg, ok := result.UnitErrors["3"]; !ok || msg != "declined" {
		t.Fatalf("expected unit 3 error recorded, got %v", result.UnitErrors)
	}
	if result.BatchID == "" {
		t.Fatal("expected batch id to be assigned")
	}
	if result.FinishedAt.Before(result.StartedAt) {
		t.Fatal("expected finished after started")
	}
}

func TestRunIsolatesPanickingUnit(t *testing.T) {
	var ran atomic.Int32
	units := []Unit{
		{Ref: "boom", Run: func(context.Context) error { panic("unit exploded") }},
		{Ref: "ok-1", Run: func(context.Context) error { ran.Add(1); return nil }},
		{Ref: "ok-2", Run: func(context.Context) error { ran.Add(1); return nil }},
	}

	result := NewOrchestrator(2).Run(context.Background(), "swap_price", units)

	if result.Failed != 1 {
		t.Fatalf("expected the panicking unit to count as failed, got %d", result.Failed)
	}
	if result.Succeeded != 2 || ran.Load() != 2 {
		t.Fatalf("expected sibling units to run, succeeded=%d ran=%d", result.Succeeded, ran.Load())
	}
	if result.UnitErrors["boom"] == "" {
		t.Fatal("expected panic message in unit errors")
	}
}

func TestRunEmptyBatch(t *testing.T) {
	result := NewOrchestrator(4).Run(context.Background(), "swap_price", nil)

	if result.Total != 0 || result.Succeeded != 0 || result.Failed != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestRunUsesAllWorkers(t *testing.T) {
	const workers = 4
	arrived := make(chan struct{}, workers)
	gate := make(chan struct{})

	units := make([]Unit, 0, workers)
	for i := 0; i < workers; i++ {
		units = append(units, Unit{
			Ref: fmt.Sprintf("u-%d", i),
			Run: func(context.Context) error {
				arrived <- struct{}{}
				<-gate
				return nil
			},
		})
	}

	done := make(chan *Result, 1)
	go func() {
		done <- NewOrchestrator(workers).Run(context.Background(), "swap_price", units)
	}()

	// All units must be in flight at once before any is released.
	for i := 0; i < workers; i++ {
		<-arrived
	}
	close(gate)

	result := <-done
	if result.Succeeded != workers {
		t.Fatalf("expected all units to succeed, got %d", result.Succeeded)
	}
}
