package payload_test

import (
	"strings"
	"testing"

	"github.com/genieiq/genieiq/internal/domain/payload"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValueAccessors(t *testing.T) {
	Convey("Given a parsed payload", t, func() {
		v, err := payload.Parse([]byte(`{
			"title": "Sales",
			"count": 12,
			"ratio": 0.5,
			"on": true,
			"flag": "false",
			"lines": ["a", "", "b", 3],
			"nested": {"inner": {"leaf": "x"}},
			"empty": [],
			"blank": "  "
		}`))
		So(err, ShouldBeNil)

		Convey("Then object lookups should be safe on every shape", func() {
			So(v.Get("title").String(), ShouldEqual, "Sales")
			So(v.Path("nested", "inner", "leaf").String(), ShouldEqual, "x")
			So(v.Path("nested", "missing", "leaf").IsNull(), ShouldBeTrue)
			So(v.Get("title").Get("x").IsNull(), ShouldBeTrue)
			So(v.Get("lines").Get("x").IsNull(), ShouldBeTrue)
			So(v.First("missing", "title").String(), ShouldEqual, "Sales")
		})

		Convey("Then scalars should coerce conservatively", func() {
			n, ok := v.Get("count").Int()
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, 12)
			_, ok = v.Get("title").Int()
			So(ok, ShouldBeFalse)
			b, ok := v.Get("on").BoolValue()
			So(ok && b, ShouldBeTrue)
			b, ok = v.Get("flag").BoolValue()
			So(ok, ShouldBeTrue)
			So(b, ShouldBeFalse)
			So(v.Get("ratio").String(), ShouldEqual, "0.5")
		})

		Convey("Then text helpers should flatten string lists", func() {
			So(v.Get("lines").Text("\n"), ShouldEqual, "a\nb\n3")
			So(v.Get("lines").Strings(), ShouldResemble, []string{"a", "b"})
			So(v.Get("title").Strings(), ShouldResemble, []string{"Sales"})
		})

		Convey("Then emptiness should cover blank strings and empty containers", func() {
			So(v.Get("empty").Empty(), ShouldBeTrue)
			So(v.Get("blank").Empty(), ShouldBeTrue)
			So(v.Get("missing").Empty(), ShouldBeTrue)
			So(v.Get("count").Empty(), ShouldBeFalse)
		})
	})

	Convey("Given malformed input", t, func() {
		_, err := payload.Parse([]byte(`{"broken": [`))
		So(err, ShouldNotBeNil)
		So(payload.ParseString(`not json`).IsNull(), ShouldBeTrue)
		So(payload.From(struct{}{}).IsNull(), ShouldBeTrue)
	})
}

func TestWalkBounds(t *testing.T) {
	Convey("Given a deeply nested payload", t, func() {
		doc := strings.Repeat(`{"a":`, 40) + `"deep"` + strings.Repeat(`}`, 40)
		v, err := payload.Parse([]byte(doc))
		So(err, ShouldBeNil)

		Convey("Then the walk should stop at the depth bound", func() {
			maxDepth := 0
			payload.Walk(v, payload.Limits{MaxDepth: 5}, func(_ string, depth int, _ payload.Value) bool {
				if depth > maxDepth {
					maxDepth = depth
				}
				return true
			})
			So(maxDepth, ShouldEqual, 5)
		})
	})

	Convey("Given a wide array", t, func() {
		items := make([]string, 0, 200)
		for i := 0; i < 200; i++ {
			items = append(items, `"t.`+strings.Repeat("x", i%5+1)+`"`)
		}
		v, _ := payload.Parse([]byte(`{"tables":[` + strings.Join(items, ",") + `]}`))

		Convey("Then only the first MaxItems elements should be visited", func() {
			leaves := 0
			payload.Walk(v, payload.Limits{MaxItems: 50}, func(_ string, _ int, n payload.Value) bool {
				if n.Kind() == payload.String {
					leaves++
				}
				return true
			})
			So(leaves, ShouldEqual, 50)
		})
	})
}

func TestCollectStrings(t *testing.T) {
	Convey("Given a payload with matching and non-matching keys", t, func() {
		v, _ := payload.Parse([]byte(`{
			"zeta": {"sample_questions": [{"id": "q1", "question": ["What is revenue?"]}]},
			"alpha": {"suggested": "Top customers?", "other": "ignored"},
			"dupe": {"question": "What is revenue?"}
		}`))

		Convey("Then matching leaves are collected once in document order", func() {
			got := payload.CollectStrings(v, []string{"question", "suggest"}, payload.DefaultLimits, nil)
			So(got, ShouldResemble, []string{"Top customers?", "What is revenue?"})
		})

		Convey("Then the accept filter should apply", func() {
			got := payload.CollectStrings(v, []string{"question"}, payload.DefaultLimits, func(s string) bool {
				return strings.HasPrefix(s, "Top")
			})
			So(got, ShouldBeEmpty)
		})
	})
}
