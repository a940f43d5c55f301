package progress

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/coocood/freecache"
	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/projection"
	"golang.org/x/sync/singleflight"
)

// MemoObserver counts memo lookups.
type MemoObserver interface {
	ObserveMemo(hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveMemo(bool) {}

// memo caches projection results by a digest of everything the engine reads. Inputs that differ in any
// way, including the current day, hash to different keys so entries never need invalidation.
type memo struct {
	cache    *freecache.Cache
	group    singleflight.Group
	ttl      time.Duration
	observer MemoObserver
	logger   *slog.Logger
}

const (
	// memoPointBytes bounds the JSON of one encoded series point.
	memoPointBytes = 160
	// memoFixedBytes bounds the JSON of everything in a result besides its series points.
	memoFixedBytes = 1024
	// freecache rejects entries larger than 1/1024 of the cache.
	memoEntriesPerCache = 1024
)

// minMemoBytes is the smallest cache that still stores the largest projection t can produce.
func minMemoBytes(t projection.Tunables) int {
	maxPoints := t.DisplayLength + t.MaxProjectedPoints + 2 //nolint:mnd // the Now and Goal points
	return (maxPoints*memoPointBytes + memoFixedBytes) * memoEntriesPerCache
}

// newMemo creates a memo of sizeBytes, raised to [minMemoBytes] when smaller.
func newMemo(
	sizeBytes int,
	tunables projection.Tunables,
	ttl time.Duration,
	observer MemoObserver,
	logger *slog.Logger,
) *memo {
	if observer == nil {
		observer = nopObserver{}
	}
	return &memo{
		cache:    freecache.NewCache(max(sizeBytes, minMemoBytes(tunables))),
		group:    singleflight.Group{},
		ttl:      ttl,
		observer: observer,
		logger:   logger,
	}
}

// projectionInput is everything a projection depends on.
type projectionInput struct {
	today  time.Time
	goal   projection.MetricGoal
	level  projection.ExperienceLevel
	weight *float64
}

// memoKey hashes in into a cache key.
func memoKey(in projectionInput) []byte {
	d := xxhash.New()
	var buf [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		_, _ = d.Write(buf[:])
		_, _ = d.WriteString(s)
	}
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = d.Write(buf[:])
	}

	writeString(in.today.Format(time.DateOnly))
	writeString(in.goal.Metric)
	writeFloat(in.goal.Current)
	writeFloat(in.goal.Target)
	writeString(in.goal.Unit)
	writeString(string(in.level))
	if in.weight != nil {
		writeString("w")
		writeFloat(*in.weight)
	} else {
		writeString("")
	}
	for _, s := range in.goal.History {
		writeString(s.Metric)
		writeString(s.Date)
		writeFloat(s.Value)
	}

	binary.LittleEndian.PutUint64(buf[:], d.Sum64())
	return buf[:]
}

// project returns the cached result for in or computes it with compute. Concurrent misses for the same
// key share one computation.
func (m *memo) project(
	ctx context.Context,
	in projectionInput,
	compute func() projection.ProjectionResult,
) projection.ProjectionResult {
	key := memoKey(in)
	if cached, err := m.cache.Get(key); err == nil {
		var result projection.ProjectionResult
		if err = json.Unmarshal(cached, &result); err == nil {
			m.observer.ObserveMemo(true)
			return result
		}
		m.logger.LogAttrs(ctx, slog.LevelWarn, "discarding undecodable memo entry",
			errors.SlogError(errors.Wrap(err, "unmarshal projection")))
	}
	m.observer.ObserveMemo(false)

	v, _, _ := m.group.Do(strconv.FormatUint(binary.LittleEndian.Uint64(key), 16), func() (any, error) {
		result := compute()
		encoded, err := json.Marshal(result)
		if err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "projection not memoized",
				errors.SlogError(errors.Wrap(err, "marshal projection")))
			return result, nil
		}
		if err = m.cache.Set(key, encoded, int(m.ttl.Seconds())); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "projection not memoized",
				errors.SlogError(errors.Wrap(err, "set memo entry")))
		}
		return result, nil
	})
	return v.(projection.ProjectionResult) //nolint:forcetypeassert // only ProjectionResult is stored
}
