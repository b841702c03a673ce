package useragent

import (
	"sync"
	"testing"
)

func TestPool_Sequential(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"}, Sequential)

	for i, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	p := NewPool(nil, "")
	if len(p.All()) != len(Default) {
		t.Errorf("expected pool length %d, got %d", len(Default), len(p.All()))
	}
	if got := p.Sequential(); got != Default[0] {
		t.Errorf("expected %s, got %s", Default[0], got)
	}
	if p.rotation != Random {
		t.Errorf("expected random rotation by default, got %s", p.rotation)
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"A", "B"}, Random)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		got := p.Next()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}

	if !seen["A"] || !seen["B"] {
		t.Errorf("expected to see both A and B randomly, got %v", seen)
	}
}

func TestPool_AllIsCopy(t *testing.T) {
	src := []string{"A"}
	p := NewPool(src, Sequential)
	src[0] = "mutated"

	all := p.All()
	all[0] = "mutated too"

	if got := p.Next(); got != "A" {
		t.Errorf("pool should be isolated from callers, got %s", got)
	}
}

func TestPool_Concurrent(t *testing.T) {
	uas := []string{"X", "Y", "Z"}
	p := NewPool(uas, Sequential)

	var wg sync.WaitGroup
	const routines = 100
	const iterations = 1000

	results := make(chan string, routines*iterations)

	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				results <- p.Next()
			}
		}()
	}

	wg.Wait()
	close(results)

	counts := map[string]int{}
	for r := range results {
		counts[r]++
	}

	// 100000 calls over 3 agents: the counter guarantees an even split.
	expectedBase := (routines * iterations) / len(uas)
	remainder := (routines * iterations) % len(uas)

	for _, k := range uas {
		if c := counts[k]; c < expectedBase || c > expectedBase+remainder {
			t.Errorf("expected between %d and %d hits for %s, got %d", expectedBase, expectedBase+remainder, k, c)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	p := &Pool{}

	if got := p.Sequential(); got != "" {
		t.Errorf("expected empty string on empty sequential, got %s", got)
	}
	if got := p.Random(); got != "" {
		t.Errorf("expected empty string on empty random, got %s", got)
	}
}

func TestParseRotation(t *testing.T) {
	tests := []struct {
		in      string
		want    Rotation
		wantErr bool
	}{
		{"", Random, false},
		{"random", Random, false},
		{"sequential", Sequential, false},
		{"roundrobin", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRotation(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRotation(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseRotation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
