package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/lingo/core"
	"github.com/trezcool/lingo/core/quiz"
)

const (
	keyPrefix        = "lingo:quiz:content:"
	versionKeyPrefix = "lingo:quiz:version:"
)

var (
	// KEYS: content, version | ARGV: entry, entry version, ttl ms
	setScript = redis.NewScript(`
local latest = tonumber(redis.call("GET", KEYS[2]) or "0")
if tonumber(ARGV[2]) < latest then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

	// KEYS: content, version | ARGV: version, ttl ms
	invalidateScript = redis.NewScript(`
local latest = tonumber(redis.call("GET", KEYS[2]) or "0")
if tonumber(ARGV[1]) > latest then
	if tonumber(ARGV[2]) > 0 then
		redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
	else
		redis.call("SET", KEYS[2], ARGV[1])
	end
end
redis.call("DEL", KEYS[1])
return 1
`)
)

// entry keeps the fields Content hides from JSON.
type entry struct {
	TeacherID string       `json:"teacherId"`
	Content   quiz.Content `json:"content"`
}

// RedisContentCache stores quiz content trees as JSON, expiring after ttl.
// Next to each tree it keeps the latest version a replace committed, and never stores an older tree.
type RedisContentCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

var _ quiz.ContentCache = (*RedisContentCache)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisClientAt(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewRedisContentCache(rdb redis.Cmdable, ttl time.Duration) *RedisContentCache {
	return &RedisContentCache{rdb: rdb, ttl: ttl}
}

func contentKey(quizID string) string {
	return keyPrefix + quizID
}

func versionKey(quizID string) string {
	return versionKeyPrefix + quizID
}

func (c RedisContentCache) Get(ctx context.Context, quizID string) (quiz.Content, bool, error) {
	raw, err := c.rdb.Get(ctx, contentKey(quizID)).Bytes()
	if err == redis.Nil {
		return quiz.Content{}, false, nil
	}
	if err != nil {
		return quiz.Content{}, false, errors.Wrap(err, "getting cached content")
	}

	var e entry
	if err = json.Unmarshal(raw, &e); err != nil {
		return quiz.Content{}, false, errors.Wrap(err, "decoding cached content")
	}
	e.Content.Quiz.TeacherID = e.TeacherID
	return e.Content, true, nil
}

// Set caches the tree unless a newer version was committed since it was read.
func (c RedisContentCache) Set(ctx context.Context, content quiz.Content) error {
	raw, err := json.Marshal(entry{TeacherID: content.Quiz.TeacherID, Content: content})
	if err != nil {
		return errors.Wrap(err, "encoding content")
	}
	quizID := content.Quiz.ID
	err = setScript.Run(
		ctx, c.rdb, []string{contentKey(quizID), versionKey(quizID)},
		raw, content.Quiz.Version, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return errors.Wrap(err, "caching content")
	}
	return nil
}

// Invalidate drops the cached tree and records version as the latest.
func (c RedisContentCache) Invalidate(ctx context.Context, quizID string, version int) error {
	err := invalidateScript.Run(
		ctx, c.rdb, []string{contentKey(quizID), versionKey(quizID)},
		version, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return errors.Wrap(err, "invalidating cached content")
	}
	return nil
}
