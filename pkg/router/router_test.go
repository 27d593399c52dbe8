// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mainflux/mainflux/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	table := New(map[string]string{
		"hub.example.com":      "127.0.0.1:35560",
		"survival.example.com": "10.0.0.2:25565",
	})

	cases := []struct {
		desc    string
		host    string
		backend string
		ok      bool
	}{
		{desc: "resolve mapped host", host: "hub.example.com", backend: "127.0.0.1:35560", ok: true},
		{desc: "resolve second mapped host", host: "survival.example.com", backend: "10.0.0.2:25565", ok: true},
		{desc: "resolve unmapped host", host: "nowhere.example.com", ok: false},
		{desc: "resolve host with different case", host: "HUB.example.com", ok: false},
		{desc: "resolve host with trailing dot", host: "hub.example.com.", ok: false},
		{desc: "resolve host with forge suffix", host: "hub.example.com\x00FML\x00", ok: false},
		{desc: "resolve parent domain", host: "example.com", ok: false},
		{desc: "resolve empty host", host: "", ok: false},
	}

	for _, tc := range cases {
		backend, ok := table.Resolve(tc.host)
		assert.Equal(t, tc.ok, ok, fmt.Sprintf("%s: expected %v got %v\n", tc.desc, tc.ok, ok))
		assert.Equal(t, tc.backend, backend, fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.backend, backend))
	}
}

func TestNewCopiesRoutes(t *testing.T) {
	routes := map[string]string{"hub.example.com": "127.0.0.1:35560"}
	table := New(routes)
	routes["hub.example.com"] = "127.0.0.1:1"
	routes["new.example.com"] = "127.0.0.1:2"

	backend, ok := table.Resolve("hub.example.com")
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1:35560", backend)
	_, ok = table.Resolve("new.example.com")
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestHosts(t *testing.T) {
	table := New(map[string]string{
		"b.example.com": "127.0.0.1:2",
		"a.example.com": "127.0.0.1:1",
		"c.example.com": "127.0.0.1:3",
	})
	assert.Equal(t, []string{"a.example.com", "b.example.com", "c.example.com"}, table.Hosts())
}

func TestResolveConcurrent(t *testing.T) {
	table := New(map[string]string{"hub.example.com": "127.0.0.1:35560"})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				backend, ok := table.Resolve("hub.example.com")
				assert.True(t, ok)
				assert.Equal(t, "127.0.0.1:35560", backend)
			}
		}()
	}
	wg.Wait()
}

func TestMerge(t *testing.T) {
	cases := []struct {
		desc string
		sets []map[string]string
		want map[string]string
		err  error
	}{
		{
			desc: "merge disjoint sets",
			sets: []map[string]string{
				{"a.example.com": "127.0.0.1:1"},
				{"b.example.com": "127.0.0.1:2"},
			},
			want: map[string]string{"a.example.com": "127.0.0.1:1", "b.example.com": "127.0.0.1:2"},
		},
		{
			desc: "merge identical duplicates",
			sets: []map[string]string{
				{"a.example.com": "127.0.0.1:1"},
				{"a.example.com": "127.0.0.1:1"},
			},
			want: map[string]string{"a.example.com": "127.0.0.1:1"},
		},
		{
			desc: "merge conflicting duplicates",
			sets: []map[string]string{
				{"a.example.com": "127.0.0.1:1"},
				{"a.example.com": "127.0.0.1:2"},
			},
			err: ErrDuplicateRoute,
		},
		{
			desc: "merge nothing",
			want: map[string]string{},
		},
	}

	for _, tc := range cases {
		got, err := Merge(tc.sets...)
		if tc.err != nil {
			assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
			continue
		}
		require.Nil(t, err, fmt.Sprintf("%s: unexpected error %s\n", tc.desc, err))
		assert.Equal(t, tc.want, got, fmt.Sprintf("%s: expected %v got %v\n", tc.desc, tc.want, got))
	}
}
