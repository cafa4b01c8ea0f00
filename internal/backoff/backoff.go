/*
Copyright 2023.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package backoff tracks a per-(item,activity) exponential retry delay,
// reused here to seed a per-stage requeue-after whenever a pipeline stage
// reports a transient outcome. Unlike the teacher's own version, the delay
// curve is parameterized by the spec's reconcile_backoff_initial/_factor
// knobs and carries jitter: workqueue.ItemExponentialFailureRateLimiter
// hardcodes a factor-2 curve with no jitter, which can't express either.
package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// jitterFraction is the spec's ±20% spread applied to every computed delay.
const jitterFraction = 0.2

type Backoff struct {
	lock       sync.Mutex
	activities map[any]any
	failures   map[any]int

	initial time.Duration
	factor  float64
	cap     time.Duration
}

// NewBackoff builds a Backoff growing by factor starting at initial and
// never exceeding cap (spec: reconcile_backoff_initial/_factor/_cap).
func NewBackoff(initial time.Duration, factor float64, cap time.Duration) *Backoff {
	if initial <= 0 {
		initial = 5 * time.Second
	}
	if factor <= 1 {
		factor = 2
	}
	return &Backoff{
		activities: make(map[any]any),
		failures:   make(map[any]int),
		initial:    initial,
		factor:     factor,
		cap:        cap,
	}
}

func (b *Backoff) Next(item any, activity any) time.Duration {
	b.lock.Lock()
	defer b.lock.Unlock()

	if act, ok := b.activities[item]; ok && act != activity {
		delete(b.failures, item)
	}
	b.activities[item] = activity
	b.failures[item]++

	delay := float64(b.initial) * math.Pow(b.factor, float64(b.failures[item]-1))
	if b.cap > 0 && delay > float64(b.cap) {
		delay = float64(b.cap)
	}
	delay = jitter(delay)
	if b.cap > 0 && delay > float64(b.cap) {
		delay = float64(b.cap)
	}
	return time.Duration(delay)
}

func (b *Backoff) Forget(item any) {
	b.lock.Lock()
	defer b.lock.Unlock()

	delete(b.activities, item)
	delete(b.failures, item)
}

// jitter spreads delay by ±jitterFraction so that many stores retrying the
// same stage at the same cadence don't all requeue in lockstep.
func jitter(delay float64) float64 {
	spread := delay * jitterFraction
	return delay - spread + rand.Float64()*2*spread
}
