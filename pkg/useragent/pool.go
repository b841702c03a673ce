package useragent

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync/atomic"
)

// Default holds desktop browser User-Agents. Sogou serves its full result
// markup to desktop clients; mobile agents get a different layout.
var Default = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
	// 360 and QQ browsers are common in Sogou's audience
	"Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36 QIHU 360SE",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/94.0.4606.71 Safari/537.36 Core/1.94.253.400 QQBrowser/12.4.5623.400",
}

// Rotation selects how a Pool hands out agents.
type Rotation string

const (
	Sequential Rotation = "sequential"
	Random     Rotation = "random"
)

// ParseRotation validates a rotation name; empty means Random.
func ParseRotation(s string) (Rotation, error) {
	switch Rotation(s) {
	case "", Random:
		return Random, nil
	case Sequential:
		return Sequential, nil
	}
	return "", fmt.Errorf("useragent: unknown rotation %q", s)
}

// Pool is a fixed set of User-Agents. It is safe for concurrent use.
type Pool struct {
	uas      []string
	rotation Rotation
	counter  atomic.Uint64
}

// NewPool creates a pool over uas, falling back to Default when empty.
func NewPool(uas []string, rotation Rotation) *Pool {
	if len(uas) == 0 {
		uas = Default
	}
	if rotation == "" {
		rotation = Random
	}
	return &Pool{uas: slices.Clone(uas), rotation: rotation}
}

// Next returns an agent according to the pool's rotation.
func (p *Pool) Next() string {
	if p.rotation == Sequential {
		return p.Sequential()
	}
	return p.Random()
}

// Sequential returns agents round-robin.
func (p *Pool) Sequential() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Random returns a uniformly chosen agent.
func (p *Pool) Random() string {
	if len(p.uas) == 0 {
		return ""
	}
	return p.uas[rand.IntN(len(p.uas))]
}

// All returns a copy of the pool's agents.
func (p *Pool) All() []string {
	return slices.Clone(p.uas)
}
