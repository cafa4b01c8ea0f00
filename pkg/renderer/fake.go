/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

package renderer

import (
	"context"
	"sync"
)

// Fake is a test double for Renderer: Apply walks a configured sequence of
// states per store name (repeating the last one once exhausted), and Purge
// just records that it was called.
type Fake struct {
	mu       sync.Mutex
	Results  map[string][]State // store name -> sequence of states Apply returns, in order
	ApplyErr map[string]error
	calls    map[string]int
	Purged   map[string]int
}

// NewFake builds an empty Fake; populate Results/ApplyErr before use.
func NewFake() *Fake {
	return &Fake{
		Results:  make(map[string][]State),
		ApplyErr: make(map[string]error),
		calls:    make(map[string]int),
		Purged:   make(map[string]int),
	}
}

func (f *Fake) Apply(ctx context.Context, req Request) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ApplyErr[req.Name]; err != nil {
		return StateUnknown, err
	}
	seq := f.Results[req.Name]
	if len(seq) == 0 {
		return StateDeployed, nil
	}
	i := f.calls[req.Name]
	if i >= len(seq) {
		i = len(seq) - 1
	}
	f.calls[req.Name]++
	return seq[i], nil
}

func (f *Fake) Purge(ctx context.Context, req Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Purged[req.Name]++
	return nil
}

// CallCount reports how many times Apply has been invoked for store.
func (f *Fake) CallCount(store string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[store]
}
