package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/taxbot/client"
	bolt "go.etcd.io/bbolt"
)

// Cache stores raw model completions so that asking the same question
// of the same model twice only costs one API call.  It holds no
// conversation state; deleting the file loses nothing but time.
//
// Buckets:
// - name: completion, key: request hash, value: 8-byte big-endian
//   unix nanosecond write time followed by the raw completion text
type Cache struct {
	// MaxAge is how long a completion stays fresh.  Get treats older
	// entries as missing.  Zero means entries never expire.
	MaxAge time.Duration

	bdb *bolt.DB
	now func() time.Time
}

const stampLen = 8

func (c *Cache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

var completionBucket = []byte("completion")

// Open opens the cache, creating the db file, its directory, and its
// bucket if they don't exist.  If another process has the file open
// we wait up to 10 seconds for its lock.
func Open(path string) (c *Cache, err error) {
	defer Return(&err)
	err = os.MkdirAll(filepath.Dir(path), 0700)
	Ck(err)
	c = &Cache{}
	opts := &bolt.Options{Timeout: 10 * time.Second}
	c.bdb, err = bolt.Open(path, 0600, opts)
	Ck(err, "opening cache %s", path)
	err = c.bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(completionBucket)
		return err
	})
	Ck(err)
	return
}

// Close closes the db.
func (c *Cache) Close() (err error) {
	defer Return(&err)
	err = c.bdb.Close()
	Ck(err)
	return
}

// Key returns the cache key for a completion request.
func Key(model, sysmsg string, msgs []client.ChatMsg) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(sysmsg))
	for _, msg := range msgs {
		h.Write([]byte{0})
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a completion.  ok is false if the key is not cached
// or its entry is older than MaxAge.
func (c *Cache) Get(key string) (value string, ok bool, err error) {
	defer Return(&err)
	err = c.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(completionBucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if len(v) < stampLen {
			return nil
		}
		stamp := time.Unix(0, int64(binary.BigEndian.Uint64(v[:stampLen])))
		if c.MaxAge > 0 && c.clock().Sub(stamp) > c.MaxAge {
			Debug("cache entry %s expired at %v", key, stamp.Add(c.MaxAge))
			return nil
		}
		// v is only valid inside the transaction
		value = string(v[stampLen:])
		ok = true
		return nil
	})
	Ck(err)
	return
}

// Put adds or replaces a completion.
func (c *Cache) Put(key, value string) (err error) {
	defer Return(&err)
	err = c.bdb.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(completionBucket)
		if err != nil {
			return err
		}
		buf := make([]byte, stampLen, stampLen+len(value))
		binary.BigEndian.PutUint64(buf, uint64(c.clock().UnixNano()))
		buf = append(buf, value...)
		return b.Put([]byte(key), buf)
	})
	Ck(err)
	return
}

// Delete removes a completion.  Deleting a missing key is a no-op.
func (c *Cache) Delete(key string) (err error) {
	defer Return(&err)
	err = c.bdb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(completionBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	Ck(err)
	return
}

// Count returns the number of cached completions.
func (c *Cache) Count() (n int, err error) {
	defer Return(&err)
	err = c.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(completionBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			n++
			return nil
		})
	})
	Ck(err)
	return
}

// Clear removes every cached completion.
func (c *Cache) Clear() (err error) {
	defer Return(&err)
	err = c.bdb.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(completionBucket) != nil {
			err := tx.DeleteBucket(completionBucket)
			if err != nil {
				return err
			}
		}
		_, err := tx.CreateBucketIfNotExists(completionBucket)
		return err
	})
	Ck(err)
	return
}
