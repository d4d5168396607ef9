package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/channel"
	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
	"github.com/amitpo23/medici-web03012026-sub001/internal/notify"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker/audit"
)

type stubWorker struct {
	name string
}

func (s *stubWorker) Name() string               { return s.name }
func (s *stubWorker) Interval() time.Duration    { return time.Hour }
func (s *stubWorker) Enabled() bool              { return true }
func (s *stubWorker) HealthThreshold() int       { return 3 }
func (s *stubWorker) Tick(context.Context) error { return nil }

type silentNotifier struct{}

func (silentNotifier) Send(string, ...notify.Options) {}

type fixedProblems struct {
	problems []audit.Problem
}

func (f *fixedProblems) Problems() []audit.Problem { return f.problems }

type bookingRepoFake struct {
	byID      map[snowflake.ID]*domain.Booking
	pushPrice map[snowflake.ID]float64
}

func (f *bookingRepoFake) Insert(context.Context, *domain.Booking) error { return nil }

func (f *bookingRepoFake) ByID(_ context.Context, id snowflake.ID) (*domain.Booking, error) {
	return f.byID[id], nil
}

func (f *bookingRepoFake) ListActive(context.Context) ([]domain.Booking, error) { return nil, nil }

func (f *bookingRepoFake) ListExpiring(context.Context, time.Time, int) ([]domain.Booking, error) {
	return nil, nil
}

func (f *bookingRepoFake) Deactivate(context.Context, snowflake.ID, string) error { return nil }

func (f *bookingRepoFake) UpdatePushPrice(_ context.Context, id snowflake.ID, price float64) error {
	if f.pushPrice == nil {
		f.pushPrice = make(map[snowflake.ID]float64)
	}
	f.pushPrice[id] = price
	return nil
}

type holdRepoFake struct {
	byID map[snowflake.ID]*domain.Hold
}

func (f *holdRepoFake) Insert(context.Context, *domain.Hold) error { return nil }

func (f *holdRepoFake) ByID(_ context.Context, id snowflake.ID) (*domain.Hold, error) {
	return f.byID[id], nil
}

type pushLogRepoFake struct {
	entries []domain.PushLog
}

func (f *pushLogRepoFake) Insert(_ context.Context, entry *domain.PushLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *pushLogRepoFake) LatestSuccessful(context.Context, string, []snowflake.ID) (map[snowflake.ID]domain.PushLog, error) {
	return nil, nil
}

func (f *pushLogRepoFake) ListByBooking(_ context.Context, id snowflake.ID) ([]domain.PushLog, error) {
	var out []domain.PushLog
	for _, entry := range f.entries {
		if entry.BookingID != nil && *entry.BookingID == id {
			out = append(out, entry)
		}
	}
	return out, nil
}

type mappingRepoFake struct {
	byHotel map[snowflake.ID]*domain.ChannelMapping
}

func (f *mappingRepoFake) ChannelByHotel(_ context.Context, hotelID snowflake.ID) (*domain.ChannelMapping, error) {
	return f.byHotel[hotelID], nil
}

func (f *mappingRepoFake) SupplierCodes(context.Context, snowflake.ID) ([]domain.SupplierHotelCode, error) {
	return nil, nil
}

func (f *mappingRepoFake) InsertChannelMapping(context.Context, *domain.ChannelMapping) error {
	return nil
}

func (f *mappingRepoFake) InsertSupplierCode(context.Context, *domain.SupplierHotelCode) error {
	return nil
}

type serverFixture struct {
	router     *gin.Engine
	supervisor *worker.Supervisor
	bookings   *bookingRepoFake
	holds      *holdRepoFake
	pushLogs   *pushLogRepoFake
	mappings   *mappingRepoFake
}

func newFixture(t *testing.T, problems []audit.Problem, workers ...worker.Worker) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	channelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<response status="ok"/>`))
	}))
	t.Cleanup(channelSrv.Close)

	cfg := config.Config{
		Channel: config.ChannelConfig{
			BaseURL:      channelSrv.URL,
			RetryBackoff: time.Millisecond,
			RetryMaxWait: time.Millisecond,
		},
	}
	m := metrics.New(cfg)
	supervisor := worker.NewSupervisor(false, clock.SystemClock{}, silentNotifier{}, m, zap.NewNop(), workers...)
	t.Cleanup(supervisor.StopAll)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	f := &serverFixture{
		supervisor: supervisor,
		bookings:   &bookingRepoFake{byID: make(map[snowflake.ID]*domain.Booking)},
		holds:      &holdRepoFake{byID: make(map[snowflake.ID]*domain.Hold)},
		pushLogs:   &pushLogRepoFake{},
		mappings:   &mappingRepoFake{byHotel: make(map[snowflake.ID]*domain.ChannelMapping)},
	}

	s := New(Params{
		Cfg:        cfg,
		Supervisor: supervisor,
		Problems:   &fixedProblems{problems: problems},
		Bookings:   f.bookings,
		Holds:      f.holds,
		PushLogs:   f.pushLogs,
		Mappings:   f.mappings,
		Pusher:     channel.NewClient(cfg, f.pushLogs, node, zap.NewNop()),
		Metrics:    m,
		Log:        zap.NewNop(),
	})
	engine := gin.New()
	s.Register(engine)
	f.router = engine
	return f
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(rec, req)
	return rec
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func confirmedBooking(id, hotelID, holdID int64) *domain.Booking {
	checkIn := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Booking{
		ID:              snowflake.ID(id),
		HoldID:          snowflake.ID(holdID),
		HotelID:         snowflake.ID(hotelID),
		HotelName:       "Grand Hotel",
		CheckIn:         checkIn,
		CheckOut:        checkIn.AddDate(0, 0, 2),
		RoomCategory:    "double",
		Board:           "breakfast",
		ConfirmationRef: "CONF-1",
		Provider:        "innstant",
		Price:           95,
		PushPrice:       120,
		Currency:        "EUR",
		Active:          true,
		Status:          domain.BookingStatusConfirmed,
	}
}

func TestWorkerStatusListsWorkers(t *testing.T) {
	f := newFixture(t, nil, &stubWorker{name: "audit"}, &stubWorker{name: "acquisition"})

	rec := doRequest(f.router, http.MethodGet, "/api/workers")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Workers map[string]worker.Stats `json:"workers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Workers) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(body.Workers))
	}
	if _, ok := body.Workers["acquisition"]; !ok {
		t.Fatalf("acquisition missing from status: %v", body.Workers)
	}
}

func TestStartUnknownWorkerListsValidNames(t *testing.T) {
	f := newFixture(t, nil, &stubWorker{name: "audit"})

	rec := doRequest(f.router, http.MethodPost, "/api/workers/nope/start")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if apiErr.Code != "worker_not_found" {
		t.Fatalf("expected worker_not_found, got %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "audit") {
		t.Fatalf("expected message to list valid names, got %q", apiErr.Message)
	}
}

func TestStartWorkerRejectsBadInterval(t *testing.T) {
	f := newFixture(t, nil, &stubWorker{name: "audit"})

	for _, raw := range []string{"nonsense", "-5s", "0s"} {
		rec := doRequest(f.router, http.MethodPost, "/api/workers/audit/start?interval="+raw)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("interval %q: expected 400, got %d", raw, rec.Code)
		}
	}
	if f.supervisor.Status()["audit"].Running {
		t.Fatalf("worker started despite invalid interval")
	}
}

func TestStartWorkerByName(t *testing.T) {
	f := newFixture(t, nil, &stubWorker{name: "audit"})

	rec := doRequest(f.router, http.MethodPost, "/api/workers/audit/start?interval=30s")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if !f.supervisor.Status()["audit"].Running {
		t.Fatalf("worker not running after explicit start")
	}

	rec = doRequest(f.router, http.MethodPost, "/api/workers/audit/stop")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 on stop, got %d", rec.Code)
	}
	if f.supervisor.Status()["audit"].Running {
		t.Fatalf("worker still running after stop")
	}
}

func TestProblemsEndpoint(t *testing.T) {
	problems := []audit.Problem{
		{Type: audit.ProblemMissingPush, Detail: "no push recorded"},
	}
	f := newFixture(t, problems)

	rec := doRequest(f.router, http.MethodGet, "/api/problems")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Count    int             `json:"count"`
		Problems []audit.Problem `json:"problems"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Problems) != 1 {
		t.Fatalf("expected one problem, got %+v", body)
	}
	if body.Problems[0].Type != audit.ProblemMissingPush {
		t.Fatalf("unexpected problem type %q", body.Problems[0].Type)
	}
}

func TestBookingDetail(t *testing.T) {
	f := newFixture(t, nil)
	f.bookings.byID[snowflake.ID(1)] = confirmedBooking(1, 7, 1001)
	f.holds.byID[snowflake.ID(1001)] = &domain.Hold{ID: snowflake.ID(1001), HotelID: snowflake.ID(7)}
	bookingID := snowflake.ID(1)
	f.pushLogs.entries = []domain.PushLog{
		{BookingID: &bookingID, PushType: domain.PushTypeRate, Success: true},
	}

	rec := doRequest(f.router, http.MethodGet, "/api/bookings/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Booking domain.Booking   `json:"booking"`
		Hold    *domain.Hold     `json:"hold"`
		Pushes  []domain.PushLog `json:"pushes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Booking.ID != snowflake.ID(1) || body.Hold == nil || body.Hold.ID != snowflake.ID(1001) {
		t.Fatalf("detail incomplete: %+v", body)
	}
	if len(body.Pushes) != 1 {
		t.Fatalf("expected 1 push entry, got %d", len(body.Pushes))
	}
}

func TestBookingDetailUnknownAndMalformedIDs(t *testing.T) {
	f := newFixture(t, nil)

	rec := doRequest(f.router, http.MethodGet, "/api/bookings/999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown booking, got %d", rec.Code)
	}
	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if apiErr.Code != "booking_not_found" {
		t.Fatalf("expected booking_not_found, got %q", apiErr.Code)
	}

	rec = doRequest(f.router, http.MethodGet, "/api/bookings/abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestUpdateBookingPricePersistsAndPushes(t *testing.T) {
	f := newFixture(t, nil)
	f.bookings.byID[snowflake.ID(1)] = confirmedBooking(1, 7, 1001)
	f.mappings.byHotel[snowflake.ID(7)] = &domain.ChannelMapping{
		HotelID:          snowflake.ID(7),
		ChannelHotelCode: "CH1",
		RoomTypeCode:     "DBL",
		RatePlanCode:     "BAR",
	}

	rec := doJSON(f.router, http.MethodPut, "/api/bookings/1/price", `{"price": 140.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := f.bookings.pushPrice[snowflake.ID(1)]; got != 140.5 {
		t.Fatalf("expected price 140.5 persisted, got %v", got)
	}

	var body struct {
		Pushed bool `json:"pushed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Pushed {
		t.Fatalf("expected the new rate pushed to the channel")
	}

	rates := 0
	for _, entry := range f.pushLogs.entries {
		if entry.PushType == domain.PushTypeRate && entry.Success {
			rates++
		}
	}
	if rates != 1 {
		t.Fatalf("expected exactly one rate push logged, got %d", rates)
	}
}

func TestUpdateBookingPriceWithoutMappingSkipsPush(t *testing.T) {
	f := newFixture(t, nil)
	f.bookings.byID[snowflake.ID(1)] = confirmedBooking(1, 7, 1001)

	rec := doJSON(f.router, http.MethodPut, "/api/bookings/1/price", `{"price": 140.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Pushed bool `json:"pushed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Pushed {
		t.Fatalf("push must be skipped for an unmapped hotel")
	}
	if got := f.bookings.pushPrice[snowflake.ID(1)]; got != 140.5 {
		t.Fatalf("price edit must persist regardless, got %v", got)
	}
}

func TestUpdateBookingPriceRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	f.bookings.byID[snowflake.ID(1)] = confirmedBooking(1, 7, 1001)

	for _, body := range []string{`{"price": -3}`, `{"price": 0}`, `{}`, `not json`} {
		rec := doJSON(f.router, http.MethodPut, "/api/bookings/1/price", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
	if _, touched := f.bookings.pushPrice[snowflake.ID(1)]; touched {
		t.Fatalf("rejected input must not reach the repository")
	}

	rec := doJSON(f.router, http.MethodPut, "/api/bookings/999/price", `{"price": 140.5}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown booking, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)

	rec := doRequest(f.router, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
