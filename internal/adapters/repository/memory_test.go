package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genieiq/genieiq/internal/adapters/repository"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func result(id, name string, score int, at time.Time) *model.ScanResult {
	owner := name + "@example.com"
	return &model.ScanResult{
		ID:            id,
		Name:          name,
		Owner:         &owner,
		TotalScore:    score,
		MaturityLevel: model.MaturityEmerging,
		Breakdown:     map[string]model.CategoryScore{"foundation": {Score: score, MaxScore: 30}},
		Findings:      []model.Finding{{ID: "instructions_present", Passed: true, Points: 10}},
		ScannedAt:     at,
		Raw:           model.CanonicalSpace{Tables: []model.Table{{FullName: "a.b.c"}}},
	}
}

func TestMemoryStorageHistory(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStorage(repository.WithMemoryClock(func() time.Time { return base }))

		Convey("When rows for one space are inserted out of order", func() {
			t1, t2, t3 := base.Add(-3*time.Hour), base.Add(-2*time.Hour), base.Add(-time.Hour)
			for _, r := range []*model.ScanResult{result("x", "X", 20, t2), result("x", "X", 30, t3), result("x", "X", 10, t1)} {
				_, err := s.SaveScanResult(ctx, r)
				So(err, ShouldBeNil)
			}

			Convey("Then latest is the newest scan", func() {
				row, err := s.GetLatest(ctx, "x")
				So(err, ShouldBeNil)
				So(row.ScannedAt, ShouldEqual, t3)
				So(row.TotalScore, ShouldEqual, 30)
				So(row.TableCount, ShouldEqual, 1)
				So(row.Owner, ShouldEqual, "X@example.com")
			})

			Convey("Then history is newest first and limited", func() {
				rows, err := s.GetHistory(ctx, "x", 0, 2)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].ScannedAt, ShouldEqual, t3)
				So(rows[1].ScannedAt, ShouldEqual, t2)
			})

			Convey("Then stored rows cannot be mutated through results", func() {
				row, _ := s.GetLatest(ctx, "x")
				row.Breakdown["foundation"] = model.CategoryScore{Score: 99}
				again, _ := s.GetLatest(ctx, "x")
				So(again.Breakdown["foundation"].Score, ShouldEqual, 30)
			})
		})

		Convey("When a row is older than the window", func() {
			_, _ = s.SaveScanResult(ctx, result("x", "X", 10, base.AddDate(0, 0, -40)))
			_, _ = s.SaveScanResult(ctx, result("x", "X", 20, base.AddDate(0, 0, -1)))

			Convey("Then a day filter excludes it", func() {
				rows, err := s.GetHistory(ctx, "x", 30, 0)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].TotalScore, ShouldEqual, 20)
			})
		})

		Convey("When the space is unknown", func() {
			_, err := s.GetLatest(ctx, "nope")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			rows, err := s.GetHistory(ctx, "nope", 0, 0)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("When a result has no space id", func() {
			_, err := s.SaveScanResult(ctx, &model.ScanResult{})
			So(errors.Is(err, repository.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestMemoryStorageListing(t *testing.T) {
	Convey("Given several scanned spaces", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStorage()
		for _, r := range []*model.ScanResult{
			result("a", "Alpha", 80, base),
			result("b", "Beta", 40, base),
			result("c", "Gamma", 60, base),
			result("d", "Delta", 60, base),
		} {
			_, _ = s.SaveScanResult(ctx, r)
		}
		So(s.SetStar(ctx, "b", "me@example.com", true), ShouldBeNil)

		Convey("Then the default order is score descending with name ties", func() {
			page, err := s.ListLatest(ctx, types.ListFilter{})
			So(err, ShouldBeNil)
			So(page.Total, ShouldEqual, 4)
			ids := []string{}
			for _, r := range page.Rows {
				ids = append(ids, r.SpaceID)
			}
			So(ids, ShouldResemble, []string{"a", "d", "c", "b"})
		})

		Convey("Then paging returns the total and a slice", func() {
			page, err := s.ListLatest(ctx, types.ListFilter{Sort: types.SortName, Limit: 2, Offset: 1})
			So(err, ShouldBeNil)
			So(page.Total, ShouldEqual, 4)
			So(page.Rows, ShouldHaveLength, 2)
			So(page.Rows[0].SpaceName, ShouldEqual, "Beta")
			So(page.Rows[1].SpaceName, ShouldEqual, "Delta")
		})

		Convey("Then search matches names and owners", func() {
			n, err := s.CountLatest(ctx, types.ListFilter{Search: "ALP"})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			n, _ = s.CountLatest(ctx, types.ListFilter{Search: "gamma@"})
			So(n, ShouldEqual, 1)
		})

		Convey("Then starred filters use the user", func() {
			page, _ := s.ListLatest(ctx, types.ListFilter{StarredOnly: true, User: "me@example.com"})
			So(page.Total, ShouldEqual, 1)
			So(page.Rows[0].SpaceID, ShouldEqual, "b")
			So(page.Rows[0].Starred, ShouldBeTrue)

			page, _ = s.ListLatest(ctx, types.ListFilter{StarredOnly: true})
			So(page.Total, ShouldEqual, 0)
		})

		Convey("Then owner filter ignores case", func() {
			n, _ := s.CountLatest(ctx, types.ListFilter{Owner: "delta@example.com"})
			So(n, ShouldEqual, 1)
		})

		Convey("Then bulk reads skip unknown ids", func() {
			got, err := s.GetLatestBulk(ctx, []string{"a", "zzz"})
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(got["a"].TotalScore, ShouldEqual, 80)
		})
	})
}

func TestMemoryStorageStarsAndSeen(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		now := base
		s := repository.NewMemoryStorage(repository.WithMemoryClock(func() time.Time { return now }))

		Convey("Then stars round-trip", func() {
			So(s.SetStar(ctx, "a", "u@example.com", true), ShouldBeNil)
			So(s.SetStar(ctx, "a", "u@example.com", true), ShouldBeNil)
			ok, _ := s.IsStarred(ctx, "a", "u@example.com")
			So(ok, ShouldBeTrue)
			stars, _ := s.ListStars(ctx, "u@example.com")
			So(stars, ShouldResemble, []string{"a"})

			So(s.SetStar(ctx, "a", "u@example.com", false), ShouldBeNil)
			ok, _ = s.IsStarred(ctx, "a", "u@example.com")
			So(ok, ShouldBeFalse)

			So(errors.Is(s.SetStar(ctx, "a", "", true), repository.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Then firstSeenAt is set once", func() {
			first := base.Add(-2 * time.Hour)
			So(s.ObserveSpace(ctx, "a", "Old name", first), ShouldBeNil)
			So(s.ObserveSpace(ctx, "a", "New name", base), ShouldBeNil)
			So(s.ObserveSpace(ctx, "a", "", base.Add(-time.Hour)), ShouldBeNil)

			rec, err := s.GetSeen(ctx, "a")
			So(err, ShouldBeNil)
			So(rec.FirstSeenAt, ShouldEqual, first)
			So(rec.LastSeenAt, ShouldEqual, base)
			So(rec.LastName, ShouldEqual, "New name")
		})

		Convey("Then new spaces are those first seen within the window", func() {
			_ = s.ObserveSpace(ctx, "old", "Old", base.AddDate(0, 0, -30))
			_ = s.ObserveSpace(ctx, "new1", "N1", base.AddDate(0, 0, -2))
			_ = s.ObserveSpace(ctx, "new2", "N2", base.AddDate(0, 0, -1))

			recs, err := s.ListNewSpaces(ctx, 7, 10)
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 2)
			So(recs[0].SpaceID, ShouldEqual, "new2")
			So(recs[1].SpaceID, ShouldEqual, "new1")
		})
	})
}

func TestMemoryStorageOrgStats(t *testing.T) {
	Convey("Given spaces on shared and dedicated warehouses", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStorage()
		add := func(id string, score int, wh string, serverless bool, m model.Maturity) {
			r := result(id, id, score, base)
			r.MaturityLevel = m
			r.Warehouse = &model.Warehouse{ID: wh, Serverless: serverless}
			_, _ = s.SaveScanResult(ctx, r)
		}
		add("a", 20, "wh-shared", false, model.MaturityEmerging)
		add("b", 60, "wh-shared", false, model.MaturityMaturing)
		add("c", 100, "wh-own", true, model.MaturityOptimized)

		st, err := s.OrgStats(ctx)

		Convey("Then both warehouse metrics are reported separately", func() {
			So(err, ShouldBeNil)
			So(st.TotalSpaces, ShouldEqual, 3)
			So(st.AverageScore, ShouldEqual, 60.0)
			So(st.NonServerlessWarehouses, ShouldEqual, 2)
			So(st.SharedWarehouses, ShouldEqual, 1)
			So(st.ByMaturity, ShouldResemble, map[string]int{"emerging": 1, "developing": 0, "maturing": 1, "optimized": 1})
		})
	})
}
