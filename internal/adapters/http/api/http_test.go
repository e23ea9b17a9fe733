package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/streetwise/internal/adapters/http/api"
	"github.com/okian/streetwise/internal/adapters/http/auth"
	"github.com/okian/streetwise/internal/adapters/http/feed"
	service "github.com/okian/streetwise/internal/app"
	"github.com/okian/streetwise/internal/domain/engine"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
	"github.com/okian/streetwise/internal/domain/scoregate"
)

// mockDeps returns canned results for every handler.
type mockDeps struct {
	session   *model.Session
	sessErr   error
	actRes    service.ActionResult
	actErr    error
	submitRes service.SubmissionResult
	submitErr error
	entries   []model.Entry
	lbErr     error
	lastLimit int
	lastTF    model.Timeframe
	rank      model.Entry
	rankErr   error
}

func (m *mockDeps) NewSession(context.Context) (*model.Session, error) { return m.session, m.sessErr }

func (m *mockDeps) Session(context.Context, string) (*model.Session, error) {
	return m.session, m.sessErr
}

func (m *mockDeps) Act(context.Context, string, model.Action) (service.ActionResult, error) {
	return m.actRes, m.actErr
}

func (m *mockDeps) SubmitScore(context.Context, model.Submission) (service.SubmissionResult, error) {
	return m.submitRes, m.submitErr
}

func (m *mockDeps) Leaderboard(_ context.Context, limit int, tf model.Timeframe) ([]model.Entry, error) {
	m.lastLimit, m.lastTF = limit, tf
	return m.entries, m.lbErr
}

func (m *mockDeps) Rank(context.Context, string) (model.Entry, error) { return m.rank, m.rankErr }

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats(context.Context) map[string]interface{} { return m.stats }

func do(h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestErrors(t *testing.T) {
	Convey("Given op-tagged errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes are both reachable", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then NewKind and Wrap carry the op", func() {
			So(api.NewKind("api.op", api.ErrUnauthorized).Error(), ShouldEqual, "api.op: unauthorized")
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}

func TestHandlers_ErrorMapping(t *testing.T) {
	Convey("Given a server over mock dependencies", t, func() {
		deps := &mockDeps{session: &model.Session{ID: "s-1", Day: 1}}
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true}}
		h := api.NewServer(deps, stats, api.WithMaxLimit(50)).Handler()

		Convey("When a session is created", func() {
			w := do(h, http.MethodPost, "/sessions", nil)

			Convey("Then it answers 201 without a token", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				body := decode(w)
				So(body["session"].(map[string]interface{})["id"], ShouldEqual, "s-1")
				_, hasToken := body["token"]
				So(hasToken, ShouldBeFalse)
			})
		})

		Convey("When the session is missing", func() {
			deps.sessErr = fmt.Errorf("load session x: %w", model.ErrNotFound)
			So(do(h, http.MethodGet, "/sessions/x", nil).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When an action is rejected", func() {
			deps.actErr = model.Reject(model.ErrValidationRejected, "You don't have enough cash.")
			w := do(h, http.MethodPost, "/sessions/s-1/actions", model.Buy("Vinyl", 500, 1))

			Convey("Then the reason is reported verbatim", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decode(w)
				So(body["admissible"], ShouldEqual, false)
				So(body["reason"], ShouldEqual, "You don't have enough cash.")
			})
		})

		Convey("When an action loses a version race", func() {
			deps.actErr = fmt.Errorf("save: %w", model.ErrVersionConflict)
			So(do(h, http.MethodPost, "/sessions/s-1/actions", model.Travel("Harbor")).Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When storage fails", func() {
			deps.actErr = fmt.Errorf("save: %w: %w", model.ErrStorage, errors.New("secret dsn detail"))
			w := do(h, http.MethodPost, "/sessions/s-1/actions", model.Travel("Harbor"))

			Convey("Then a generic 500 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldNotContainSubstring, "secret")
			})
		})

		Convey("When the action body is malformed", func() {
			So(do(h, http.MethodPost, "/sessions/s-1/actions", "{nope").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a score fails the integrity check", func() {
			deps.submitErr = model.Reject(model.ErrIntegrityRejected, "integrity hash mismatch")
			w := do(h, http.MethodPost, "/scores", model.Submission{PlayerName: "Ana"})

			Convey("Then the answer is generic", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decode(w), ShouldResemble, map[string]interface{}{"accepted": false, "code": "rejected"})
			})
		})

		Convey("When a score is rate limited", func() {
			deps.submitErr = scoregate.RateLimited(90*time.Second + time.Millisecond)
			w := do(h, http.MethodPost, "/scores", model.Submission{PlayerName: "Ana"})

			Convey("Then Retry-After is rounded up to whole seconds", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Header().Get("Retry-After"), ShouldEqual, "91")
			})
		})

		Convey("When the leaderboard is queried", func() {
			deps.entries = []model.Entry{{ID: "a", Score: 10, Rank: 1}}

			Convey("Then limit and timeframe are passed through", func() {
				w := do(h, http.MethodGet, "/leaderboard?limit=5&timeframe=Weekly", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 5)
				So(deps.lastTF, ShouldEqual, model.TimeframeWeekly)
			})

			Convey("Then the limit defaults when absent", func() {
				So(do(h, http.MethodGet, "/leaderboard", nil).Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 10)
			})

			Convey("Then bad parameters answer 400", func() {
				So(do(h, http.MethodGet, "/leaderboard?limit=0", nil).Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/leaderboard?limit=abc", nil).Code, ShouldEqual, http.StatusBadRequest)
				w := do(h, http.MethodGet, "/leaderboard?limit=51", nil)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "limit_exceeded")
				So(do(h, http.MethodGet, "/leaderboard?timeframe=monthly", nil).Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then an empty board is an empty list", func() {
				deps.entries = nil
				w := do(h, http.MethodGet, "/leaderboard", nil)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})

			Convey("Then upstream failures answer 500", func() {
				deps.lbErr = model.ErrStorage
				So(do(h, http.MethodGet, "/leaderboard", nil).Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When an entry is looked up", func() {
			deps.rank = model.Entry{ID: "a", PlayerName: "Ana", Rank: 3}
			w := do(h, http.MethodGet, "/leaderboard/a", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["rank"], ShouldEqual, float64(3))

			deps.rankErr = model.ErrNotFound
			So(do(h, http.MethodGet, "/leaderboard/zzz", nil).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When health and stats are requested", func() {
			So(do(h, http.MethodGet, "/healthz", nil).Code, ShouldEqual, http.StatusOK)
			w := do(h, http.MethodGet, "/stats", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("When a route is hit with the wrong method", func() {
			So(do(h, http.MethodDelete, "/sessions/s-1", nil).Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestScores_SubmitRateLimit(t *testing.T) {
	Convey("Given a submit rate of two per minute", t, func() {
		deps := &mockDeps{submitRes: service.SubmissionResult{Entry: model.Entry{ID: "a"}, Rank: 1}}
		h := api.NewServer(deps, &mockStatsProvider{}, api.WithSubmitRate(2)).Handler()

		Convey("Then the third request from one IP is throttled", func() {
			So(do(h, http.MethodPost, "/scores", model.Submission{}).Code, ShouldEqual, http.StatusCreated)
			So(do(h, http.MethodPost, "/scores", model.Submission{}).Code, ShouldEqual, http.StatusCreated)
			w := do(h, http.MethodPost, "/scores", model.Submission{})
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Header().Get("Retry-After"), ShouldNotBeEmpty)
		})
	})
}

func validSubmission(name string, now time.Time, score int) model.Submission {
	gd := model.GameData{
		Score:       score,
		Day:         30,
		StartTime:   now.Add(-8 * time.Minute).UnixMilli(),
		EndTime:     now.UnixMilli(),
		PlayerStats: model.PlayerStats{Cash: score + 1000, Debt: 1000, MaxInventory: 100, Health: 100},
	}
	return model.Submission{PlayerName: name, GameData: gd, IntegrityHash: scoregate.Hash(gd, scoregate.DefaultHashLength)}
}

func TestServer_EndToEnd(t *testing.T) {
	ctx := context.Background()

	Convey("Given the API wired to a real service", t, func() {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		hub := feed.NewHub()
		svc := service.New(
			service.WithEngine(engine.New(nil, engine.WithRandom(&random.Scripted{}), engine.WithClock(clock))),
			service.WithClock(clock),
			service.WithPublisher(hub),
			service.WithWorkerCount(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		tokens, err := auth.NewIssuer("test-secret", time.Hour, auth.WithClock(clock))
		So(err, ShouldBeNil)

		srv := httptest.NewServer(api.NewServer(svc, svc, api.WithTokens(tokens), api.WithLiveFeed(hub)).Handler())
		defer srv.Close()
		defer hub.Close()
		defer func() { _ = svc.Stop(ctx) }()
		h := srv.Config.Handler

		w := do(h, http.MethodPost, "/sessions", nil)
		So(w.Code, ShouldEqual, http.StatusCreated)
		var created struct {
			Session model.Session `json:"session"`
			Token   string        `json:"token"`
		}
		So(json.Unmarshal(w.Body.Bytes(), &created), ShouldBeNil)
		So(created.Token, ShouldNotBeEmpty)
		id := created.Session.ID
		bearer := "Bearer " + created.Token

		Convey("Then actions need the session's token", func() {
			So(do(h, http.MethodPost, "/sessions/"+id+"/actions", model.Travel("Harbor")).Code, ShouldEqual, http.StatusUnauthorized)

			other := do(h, http.MethodPost, "/sessions", nil)
			var second struct {
				Token string `json:"token"`
			}
			_ = json.Unmarshal(other.Body.Bytes(), &second)
			w := do(h, http.MethodPost, "/sessions/"+id+"/actions", model.Travel("Harbor"), "Authorization", "Bearer "+second.Token)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then an admissible buy is applied", func() {
			p := created.Session.CurrentPrices[0]
			w := do(h, http.MethodPost, "/sessions/"+id+"/actions", model.Buy(p.Name, 2, 2*p.Price), "Authorization", bearer)
			So(w.Code, ShouldEqual, http.StatusOK)

			var res struct {
				Admissible bool          `json:"admissible"`
				Session    model.Session `json:"session"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
			So(res.Admissible, ShouldBeTrue)
			So(res.Session.Player.Inventory[p.Name], ShouldEqual, 2)

			got := do(h, http.MethodGet, "/sessions/"+id, nil)
			So(got.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then a buy beyond capacity is rejected with a reason", func() {
			p := created.Session.CurrentPrices[0]
			w := do(h, http.MethodPost, "/sessions/"+id+"/actions", model.Buy(p.Name, 101, 101*p.Price), "Authorization", bearer)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decode(w)["reason"], ShouldNotBeEmpty)
		})

		Convey("Then scores flow to the leaderboard and the live feed", func() {
			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/leaderboard/live", nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			deadline := time.Now().Add(2 * time.Second)
			for hub.Len() == 0 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}

			w := do(h, http.MethodPost, "/scores", validSubmission("Ana", now, 9000))
			So(w.Code, ShouldEqual, http.StatusCreated)
			body := decode(w)
			So(body["accepted"], ShouldEqual, true)
			So(body["rank"], ShouldEqual, float64(1))

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := conn.ReadMessage()
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"playerName":"Ana"`)

			again := do(h, http.MethodPost, "/scores", validSubmission("Ana", now, 9500))
			So(again.Code, ShouldEqual, http.StatusTooManyRequests)
			So(again.Header().Get("Retry-After"), ShouldEqual, "300")

			tampered := validSubmission("Bo", now, 9000)
			tampered.GameData.Score = 9400
			So(do(h, http.MethodPost, "/scores", tampered).Code, ShouldEqual, http.StatusUnprocessableEntity)

			board := do(h, http.MethodGet, "/leaderboard?limit=10&timeframe=daily", nil)
			var entries []model.Entry
			So(json.Unmarshal(board.Body.Bytes(), &entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 1)
			So(entries[0].PlayerName, ShouldEqual, "Ana")

			entry := do(h, http.MethodGet, "/leaderboard/"+entries[0].ID, nil)
			So(entry.Code, ShouldEqual, http.StatusOK)
		})
	})
}
