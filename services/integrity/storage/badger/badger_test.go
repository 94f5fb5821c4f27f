// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

func openStore(t *testing.T) *SnapshotStore {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSnapshotStore(db)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.SyncWrites)
	assert.Equal(t, 5*time.Minute, cfg.GCInterval)
	assert.False(t, cfg.InMemory)

	mem := InMemoryConfig()
	assert.True(t, mem.InMemory)
	assert.Zero(t, mem.GCInterval)
}

func TestOpen_PersistentSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.SyncWrites = false

	db, err := Open(cfg)
	require.NoError(t, err)
	assert.False(t, db.InMemory())
	store := NewSnapshotStore(db)
	require.NoError(t, store.Save(context.Background(), &model.Snapshot{Class: "Catalog", URI: "Catalog.A"}))
	require.NoError(t, db.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()
	snap, err := NewSnapshotStore(db).Load(context.Background(), "Catalog.A")
	require.NoError(t, err)
	assert.Equal(t, "Catalog", snap.Class)
}

func TestDB_TxnHelpers(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	require.NoError(t, db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		require.NoError(t, err)
		return item.Value(func(val []byte) error {
			assert.Equal(t, []byte("v"), val)
			return nil
		})
	}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, db.WithTxn(cancelled, func(*badger.Txn) error { return nil }))
	assert.Error(t, db.WithReadTxn(cancelled, func(*badger.Txn) error { return nil }))
}

func TestSnapshotStore_SaveLoadDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	snap := &model.Snapshot{
		ID:    7,
		Class: "Form",
		URI:   "Form.F",
		Children: map[string][]*model.Snapshot{
			"items": {{ID: 8, Class: "FormField", Attrs: map[string]any{"id": 3, "name": "Field"}}},
		},
	}

	require.NoError(t, store.Save(ctx, snap))
	got, err := store.Load(ctx, "Form.F")
	require.NoError(t, err)
	assert.Equal(t, model.ID(7), got.ID)
	require.Len(t, got.Children["items"], 1)
	assert.Equal(t, "Field", got.Children["items"][0].Attrs["name"])

	uris, err := store.URIs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.URI{"Form.F"}, uris)

	require.NoError(t, store.Delete(ctx, "Form.F"))
	_, err = store.Load(ctx, "Form.F")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotStore_RejectsMissingURI(t *testing.T) {
	store := openStore(t)
	assert.ErrorIs(t, store.Save(context.Background(), &model.Snapshot{Class: "Form"}), model.ErrInvalidSnapshot)
}

func TestSnapshotStore_EvictAndReload(t *testing.T) {
	store := openStore(t)
	g := model.NewGraph(model.WithStore(store))
	form := g.NewAddressable(model.ClassForm, "Form.F")
	field := g.NewNode(model.ClassFormField)
	require.NoError(t, field.SetInt(model.ItemID, 42))
	require.NoError(t, field.SetText(model.Name, "Field"))
	path := g.NewNode(model.ClassDataPath)
	require.NoError(t, path.SetRef(model.Target, "Catalog.A"))
	require.NoError(t, field.SetChild(model.Path, path))
	require.NoError(t, form.Append(model.Items, field))
	require.NoError(t, g.AttachTop(form))
	g.Flush()
	fieldID := field.ID()

	require.NoError(t, g.Evict(context.Background(), "Form.F"))
	assert.True(t, g.IsEvicted("Form.F"))
	assert.False(t, field.IsLive())

	reloaded, ok := g.Top("Form.F")
	require.True(t, ok)
	items := reloaded.Children(model.Items)
	require.Len(t, items, 1)
	assert.Equal(t, fieldID, items[0].ID())
	assert.Equal(t, 42, items[0].Int(model.ItemID))
	assert.Equal(t, "Field", items[0].Text(model.Name))
	assert.Equal(t, model.URI("Catalog.A"), items[0].Child(model.Path).Ref(model.Target))
	assert.Zero(t, g.PendingNotifications())
}
