package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/genieiq/genieiq/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func signedToken(exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "sp", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return s
}

var connCfg = repository.ConnConfig{Host: "db.example.com", Port: 5432, Database: "genieiq", User: "svc", SSLMode: "require"}

func TestConnectionManagerCandidates(t *testing.T) {
	Convey("Given configured, platform and minted candidates", t, func() {
		ctx := context.Background()
		dialer := &fakeDialer{accept: map[string]bool{"platform-pw": true, "minted-pw": true}}
		minted := 0
		minter := repository.MinterFunc(func(context.Context) (repository.Credential, error) {
			minted++
			return repository.Credential{Token: "minted-pw"}, nil
		})
		m := repository.NewConnectionManager(connCfg,
			repository.WithDialer(dialer.Dial),
			repository.WithCandidates(repository.DefaultCandidates("configured-pw", "platform-pw", minter)...),
		)

		Convey("When acquiring without a request token", func() {
			db, err := m.Acquire(ctx)

			Convey("Then the first working candidate wins in priority order", func() {
				So(err, ShouldBeNil)
				So(db, ShouldNotBeNil)
				So(dialer.dialCount(), ShouldEqual, 2)
				So(minted, ShouldEqual, 0)
				So(m.Failures(), ShouldHaveLength, 1)
				So(m.Failures()[0].Candidate, ShouldEqual, repository.CandidateConfigured)
			})

			Convey("Then the pool is reused while fresh", func() {
				again, err := m.Acquire(ctx)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, db)
				So(dialer.dialCount(), ShouldEqual, 2)
			})
		})

		Convey("When a request token is attached", func() {
			dialer.accept["request-pw"] = true
			db, err := m.Acquire(repository.WithRequestToken(ctx, "request-pw"))

			Convey("Then it is tried first", func() {
				So(err, ShouldBeNil)
				So(dialer.dialCount(), ShouldEqual, 1)
				So(db.(*fakeDB).dsn, ShouldContainSubstring, ":request-pw@db.example.com:5432/genieiq")
				So(db.(*fakeDB).dsn, ShouldContainSubstring, "sslmode=require")
			})
		})
	})

	Convey("Given candidates that all fail", t, func() {
		dialer := &fakeDialer{accept: map[string]bool{}}
		m := repository.NewConnectionManager(connCfg,
			repository.WithDialer(dialer.Dial),
			repository.WithCandidates(repository.DefaultCandidates("a", "b",
				repository.MinterFunc(func(context.Context) (repository.Credential, error) {
					return repository.Credential{}, errors.New("mint refused")
				}))...),
		)

		_, err := m.Acquire(context.Background())

		Convey("Then the error is ErrNoCredentials and every reason is kept", func() {
			So(errors.Is(err, repository.ErrNoCredentials), ShouldBeTrue)
			f := m.Failures()
			So(f, ShouldHaveLength, 3)
			So(f[0].Candidate, ShouldEqual, repository.CandidateConfigured)
			So(f[1].Candidate, ShouldEqual, repository.CandidatePlatform)
			So(f[2].Candidate, ShouldEqual, repository.CandidateMinted)
			So(f[2].Error, ShouldContainSubstring, "mint refused")
		})
	})

	Convey("Given no candidate at all", t, func() {
		m := repository.NewConnectionManager(connCfg, repository.WithCandidates(repository.DefaultCandidates("", "", nil)...))
		_, err := m.Acquire(context.Background())
		So(errors.Is(err, repository.ErrNoCredentials), ShouldBeTrue)
		So(m.Failures()[0].Candidate, ShouldEqual, "none")
	})
}

func TestConnectionManagerExpiry(t *testing.T) {
	Convey("Given a JWT credential expiring in ten minutes", t, func() {
		now := time.Unix(1_800_000_000, 0)
		clock := func() time.Time { return now }
		token := signedToken(now.Add(10 * time.Minute))
		dialer := &fakeDialer{accept: map[string]bool{token: true}}
		m := repository.NewConnectionManager(connCfg,
			repository.WithDialer(dialer.Dial),
			repository.WithConnClock(clock),
			repository.WithSafetyMargin(2*time.Minute),
			repository.WithCandidates(repository.DefaultCandidates(token, "", nil)...),
		)

		first, err := m.Acquire(context.Background())
		So(err, ShouldBeNil)

		Convey("Then the pool is reused before expiry minus margin", func() {
			now = now.Add(7 * time.Minute)
			_, err := m.Acquire(context.Background())
			So(err, ShouldBeNil)
			So(dialer.dialCount(), ShouldEqual, 1)
		})

		Convey("Then the pool is replaced and closed inside the margin", func() {
			now = now.Add(8 * time.Minute)
			second, err := m.Acquire(context.Background())
			So(err, ShouldBeNil)
			So(dialer.dialCount(), ShouldEqual, 2)
			So(second, ShouldNotEqual, first)
			So(first.(*fakeDB).closed.Load(), ShouldBeTrue)
		})
	})
}

func TestTokenExpiry(t *testing.T) {
	Convey("Given tokens of different shapes", t, func() {
		exp := time.Unix(1_900_000_000, 0)

		got, ok := repository.TokenExpiry(signedToken(exp))
		So(ok, ShouldBeTrue)
		So(got.Equal(exp), ShouldBeTrue)

		_, ok = repository.TokenExpiry("dapi-opaque-token")
		So(ok, ShouldBeFalse)
	})
}
