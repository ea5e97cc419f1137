package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/genieiq/genieiq/internal/domain/cache"
	. "github.com/smartystreets/goconvey/convey"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCache(t *testing.T) {
	Convey("Given a cache with a fake clock", t, func() {
		clk := &clock{now: time.Unix(1_700_000_000, 0)}
		c := cache.New[string](cache.WithClock(clk.Now), cache.WithMaxSize(3))

		Convey("When a value is set", func() {
			c.Set("a", "1", time.Minute)

			Convey("Then it is returned before expiry", func() {
				v, ok := c.Get("a")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "1")
				So(c.Size(), ShouldEqual, 1)
			})

			Convey("Then it is gone at expiry", func() {
				clk.Advance(time.Minute)
				_, ok := c.Get("a")
				So(ok, ShouldBeFalse)
				So(c.Size(), ShouldEqual, 0)
			})

			Convey("Then overwriting resets the ttl", func() {
				clk.Advance(50 * time.Second)
				c.Set("a", "2", time.Minute)
				clk.Advance(50 * time.Second)
				v, ok := c.Get("a")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "2")
				So(c.Size(), ShouldEqual, 1)
			})

			Convey("Then a zero ttl removes it", func() {
				c.Set("a", "x", 0)
				_, ok := c.Get("a")
				So(ok, ShouldBeFalse)
				So(c.Size(), ShouldEqual, 0)
			})
		})

		Convey("When the cache is full", func() {
			c.Set("a", "1", time.Minute)
			c.Set("b", "2", time.Minute)
			c.Set("c", "3", time.Minute)

			Convey("Then the oldest entry is evicted", func() {
				c.Set("d", "4", time.Minute)
				_, ok := c.Get("a")
				So(ok, ShouldBeFalse)
				_, ok = c.Get("d")
				So(ok, ShouldBeTrue)
				So(c.Size(), ShouldEqual, 3)
			})

			Convey("Then expired entries are evicted first", func() {
				c.Set("short", "s", time.Second)
				// "a" was evicted to make room for "short"
				clk.Advance(2 * time.Second)
				c.Set("e", "5", time.Minute)
				_, ok := c.Get("b")
				So(ok, ShouldBeTrue)
				_, ok = c.Get("short")
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestCacheConcurrency(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		c := cache.New[int](cache.WithMaxSize(100))
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					key := fmt.Sprintf("k-%d", i%150)
					c.Set(key, i, time.Minute)
					c.Get(key)
				}
			}(g)
		}
		wg.Wait()

		Convey("Then the bound holds", func() {
			So(c.Size(), ShouldBeLessThanOrEqualTo, 100)
		})
	})
}
