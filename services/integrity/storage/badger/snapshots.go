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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianCheck/services/integrity/model"
)

// snapshotPrefix namespaces snapshot keys.
const snapshotPrefix = "snapshot/"

// ErrSnapshotNotFound is returned by Load for an unknown URI.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore implements model.Store on a DB.
//
// Values are JSON encoded snapshots keyed by top object URI.
//
// Thread Safety:
//
//	Safe for concurrent use.
type SnapshotStore struct {
	db *DB
}

var _ model.Store = (*SnapshotStore)(nil)

// NewSnapshotStore wraps db.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func snapshotKey(uri model.URI) []byte {
	return []byte(snapshotPrefix + string(uri))
}

// Save implements model.Store.
func (s *SnapshotStore) Save(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil || snap.URI == "" {
		return fmt.Errorf("%w: snapshot without uri", model.ErrInvalidSnapshot)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.URI, err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snap.URI), data)
	})
}

// Load implements model.Store.
func (s *SnapshotStore) Load(ctx context.Context, uri model.URI) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(uri))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, uri)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			dec := json.NewDecoder(bytes.NewReader(val))
			dec.UseNumber()
			return dec.Decode(&snap)
		})
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete implements model.Store.
func (s *SnapshotStore) Delete(ctx context.Context, uri model.URI) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(uri))
	})
}

// URIs lists the stored snapshot URIs in key order.
func (s *SnapshotStore) URIs(ctx context.Context) ([]model.URI, error) {
	var out []model.URI
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(snapshotPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			out = append(out, model.URI(key[len(snapshotPrefix):]))
		}
		return nil
	})
	return out, err
}
