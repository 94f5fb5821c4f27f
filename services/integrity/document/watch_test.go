// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reload struct {
	doc *Document
	err error
}

func startWatcher(t *testing.T, path string) <-chan reload {
	t.Helper()
	got := make(chan reload, 8)
	w, err := NewWatcher(path, func(doc *Document, err error) {
		got <- reload{doc, err}
	}, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "second start is a no-op")
	return got
}

func waitReload(t *testing.T, got <-chan reload) reload {
	t.Helper()
	select {
	case r := <-got:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
		return reload{}
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	got := startWatcher(t, path)

	updated := sample + `
  - class: Catalog
    uri: Catalog.Products
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	r := waitReload(t, got)
	require.NoError(t, r.err)
	assert.Len(t, r.doc.Objects, 3)
}

func TestWatcher_ReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	got := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("objects: [{class: Form}]"), 0o644))

	r := waitReload(t, got)
	assert.ErrorIs(t, r.err, ErrInvalidDocument)
	assert.Nil(t, r.doc)
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	got := startWatcher(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(sample), 0o644))

	select {
	case <-got:
		t.Fatal("reloaded for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}
