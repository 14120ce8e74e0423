// checkpoint creates CheckpointIO which stores finished per-sample
// results, so an interrupted batch can be resumed.
package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/op/go-logging"
	"github.com/vmihailenco/msgpack/v5"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// MAIN is the bucket containing one sub-bucket per run configuration.
var MAIN = []byte("main")

// Key derives a checkpoint key from the run configuration. Any
// change in the configuration gives a different key. The
// configuration is hashed in its JSON form, which has sorted map keys.
func Key(config interface{}) ([]byte, error) {
	b, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}
	return []byte(strconv.FormatUint(xxhash.Sum64(b), 16)), nil
}

// CheckpointIO saves and loads sample results.
type CheckpointIO struct {
	db      *bolt.DB
	key     []byte
	last    time.Time
	seconds float64
	pending map[int][]byte
}

// NewCheckpointIO creates a new CheckpointIO. Pending results are
// written when the last save is older than seconds.
func NewCheckpointIO(db *bolt.DB, key []byte, seconds float64) (s *CheckpointIO) {
	s = &CheckpointIO{
		db:      db,
		key:     key,
		seconds: seconds,
		pending: make(map[int][]byte),
	}
	s.SetNow()
	return
}

// Add queues the result of sample i and saves the queue if the last
// save is old. Results are stored in MessagePack.
func (s *CheckpointIO) Add(i int, result interface{}) error {
	if s.db == nil {
		return nil
	}
	b, err := msgpack.Marshal(result)
	if err != nil {
		log.Error("Error serializing checkpoint", err)
		return err
	}
	s.pending[i] = b
	if s.Old() {
		return s.Save()
	}
	return nil
}

// Save writes all the queued results.
func (s *CheckpointIO) Save() error {
	// Even if saving fails, we do not want to run this code too often.
	s.SetNow()
	if len(s.pending) == 0 {
		return nil
	}
	err := SaveData(s.db, s.key, s.pending)
	if err != nil {
		log.Error("Error saving checkpoint", err)
		return err
	}
	log.Debugf("Saved %d results to checkpoint", len(s.pending))
	s.pending = make(map[int][]byte)
	return nil
}

// Unmarshal decodes a result stored by Add.
func Unmarshal(b []byte, result interface{}) error {
	return msgpack.Unmarshal(b, result)
}

// Results returns the stored results, decoding them with decode.
func (s *CheckpointIO) Results(decode func(i int, b []byte) error) (n int, err error) {
	data, err := LoadData(s.db, s.key)
	if err != nil {
		return 0, err
	}
	for i, b := range data {
		if err := decode(i, b); err != nil {
			return 0, err
		}
	}
	if len(data) > 0 {
		log.Noticef("Found checkpoint with %d finished samples", len(data))
	}
	return len(data), nil
}

// Old returns true if last checkpoint save time too long ago.
func (s *CheckpointIO) Old() bool {
	if time.Since(s.last).Seconds() > s.seconds {
		return true
	}
	return false
}

// SetNow sets last checkpoint time to now.
func (s *CheckpointIO) SetNow() {
	s.last = time.Now()
}

func itob(i int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return b
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data map[int][]byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		main, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}
		b, err := main.CreateBucketIfNotExists(key)
		if err != nil {
			return err
		}

		for i, v := range data {
			if err := b.Put(itob(i), v); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) (map[int][]byte, error) {
	data := make(map[int][]byte)
	if db == nil {
		return data, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		main := tx.Bucket(MAIN)
		if main == nil {
			return nil
		}
		b := main.Bucket(key)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			// values are only valid during the transaction
			c := make([]byte, len(v))
			copy(c, v)
			data[int(binary.BigEndian.Uint64(k))] = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
