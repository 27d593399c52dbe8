// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package router resolves the hostname a client declares in its handshake
// to the address of a backend server.
package router

import (
	"fmt"
	"sort"

	"github.com/mainflux/mainflux/pkg/errors"
)

// ErrDuplicateRoute indicates the same hostname is mapped to two backends.
var ErrDuplicateRoute = errors.New("hostname mapped to more than one backend")

// Table is an immutable hostname to backend address mapping. It is safe
// for concurrent use.
type Table struct {
	routes map[string]string
}

// New returns a Table holding a copy of routes.
func New(routes map[string]string) *Table {
	t := &Table{routes: make(map[string]string, len(routes))}
	for host, backend := range routes {
		t.routes[host] = backend
	}
	return t
}

// Resolve returns the backend for host. Matching is exact and case-sensitive.
func (t *Table) Resolve(host string) (string, bool) {
	backend, ok := t.routes[host]
	return backend, ok
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// Hosts returns the routed hostnames in sorted order.
func (t *Table) Hosts() []string {
	hosts := make([]string, 0, len(t.routes))
	for host := range t.routes {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// Merge combines route sets. The same hostname may appear more than once
// only if it maps to the same backend every time.
func Merge(sets ...map[string]string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, set := range sets {
		for host, backend := range set {
			if prev, ok := merged[host]; ok && prev != backend {
				return nil, errors.Wrap(ErrDuplicateRoute, fmt.Errorf("%s: %s and %s", host, prev, backend))
			}
			merged[host] = backend
		}
	}
	return merged, nil
}
