package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/lostlink/matcher/internal/db"
)

// casField sets KEYS[1].ARGV[1] to ARGV[3] only if it still equals ARGV[2].
// Returns -1 when the hash is gone, 0 on a lost race, 1 on success.
// An absent field compares equal to "".
var casField = rueidis.NewLuaScriptNoSha(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur then cur = '' end
if cur ~= ARGV[2] then return 0 end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
return 1
`)

// HUpdate performs an optimistic read-modify-write of one hash field:
// read, compute next via fn, then compare-and-set in a Lua script. A lost race
// re-reads and calls fn again, up to the configured number of attempts.
func (s *Store) HUpdate(ctx context.Context, key, field string, fn db.UpdateFunc) error {
	for attempt := 0; attempt < s.updateRetries; attempt++ {
		current, err := s.readField(ctx, key, field)
		if err != nil {
			return err
		}

		next, write, err := fn(current)
		if err != nil {
			return err
		}
		if !write {
			return nil
		}

		res, err := casField.Exec(ctx, s.client, []string{key}, []string{field, current, next}).AsInt64()
		if err != nil {
			return &db.Error{Op: db.OpEval, Err: err}
		}
		switch res {
		case 1:
			return nil
		case -1:
			return db.ErrKeyNotFound
		}
	}
	return &db.Error{Op: db.OpEval, Err: fmt.Errorf("key %s field %s: %w", key, field, db.ErrTxConflict)}
}

// readField returns the field value ("" if absent) or ErrKeyNotFound if the hash is missing.
func (s *Store) readField(ctx context.Context, key, field string) (string, error) {
	results := s.client.DoMulti(ctx,
		s.b().Exists().Key(key).Build(),
		s.b().Hget().Key(key).Field(field).Build(),
	)

	n, err := results[0].AsInt64()
	if err != nil {
		return "", &db.Error{Op: db.OpExists, Err: err}
	}
	if n == 0 {
		return "", db.ErrKeyNotFound
	}

	v, err := results[1].ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", nil
		}
		return "", &db.Error{Op: db.OpHGet, Err: err}
	}
	return v, nil
}
