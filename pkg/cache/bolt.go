// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	READ_WRITE_MODE os.FileMode = 0600

	// DEFAULT_BUCKET is used when the config does not name a bucket
	DEFAULT_BUCKET = "nebulous"
)

// errors
var (
	ErrFilePathIsBlank = errors.New("bolt file path must not be blank")
)

// Bolt is a file backed Cache. Entries are stored in a single bucket along with their expiry time.
// Expired entries read as missing and are deleted when they are read.
type Bolt struct {
	path   string
	bucket []byte
	db     *bolt.DB
}

type boltEntry struct {
	Value string `json:"value"`
	// Expires is a unix time in nanoseconds. 0 means never.
	Expires int64 `json:"expires,omitempty"`
}

func (a boltEntry) expired(now time.Time) bool {
	return a.Expires != 0 && now.UnixNano() >= a.Expires
}

// NewBolt returns a disconnected bolt cache
func NewBolt(connect config.CacheConnect) (*Bolt, error) {
	path := strings.TrimSpace(connect.Path)
	if path == "" {
		return nil, ErrFilePathIsBlank
	}
	bucket := strings.TrimSpace(connect.Bucket)
	if bucket == "" {
		bucket = DEFAULT_BUCKET
	}
	return &Bolt{path: path, bucket: []byte(bucket)}, nil
}

// Connect opens the database file, creating it and the bucket if they do not exist
func (a *Bolt) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	options := &bolt.Options{
		Timeout: time.Second * 5,
	}
	db, err := bolt.Open(a.path, READ_WRITE_MODE, options)
	if err != nil {
		return neb.NewConnectionError(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(a.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return neb.NewConnectionError(err)
	}
	a.db = db
	return nil
}

func (a *Bolt) Connected() bool {
	return a.db != nil
}

func (a *Bolt) Quit() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *Bolt) Get(ctx context.Context, key string) (string, bool, error) {
	if a.db == nil {
		return "", false, errNotConnected()
	}
	var entry *boltEntry
	err := a.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(a.bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		entry = &boltEntry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return "", false, err
	}
	if entry == nil {
		return "", false, nil
	}
	if entry.expired(time.Now()) {
		if _, err := a.Del(ctx, key); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (a *Bolt) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if a.db == nil {
		return errNotConnected()
	}
	entry := boltEntry{Value: value}
	if ttl > 0 {
		entry.Expires = time.Now().Add(ttl).UnixNano()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(a.bucket).Put([]byte(key), data)
	})
}

func (a *Bolt) Del(ctx context.Context, key string) (int64, error) {
	if a.db == nil {
		return 0, errNotConnected()
	}
	var deleted int64
	err := a.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(a.bucket)
		if bucket.Get([]byte(key)) == nil {
			return nil
		}
		deleted = 1
		return bucket.Delete([]byte(key))
	})
	return deleted, err
}
