package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	conciergerepo "github.com/yungbote/concierge-backend/internal/data/repos/concierge"
	"github.com/yungbote/concierge-backend/internal/data/repos/testutil"
	"github.com/yungbote/concierge-backend/internal/domain/concierge"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/realtime"
)

type conciergeHarness struct {
	db           *gorm.DB
	emit         *recordingEmitter
	reservations ReservationService
	requests     ServiceRequestService
	now          time.Time
}

func newConciergeHarness(t *testing.T) *conciergeHarness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	emit := &recordingEmitter{}
	notify := NewConciergeNotifier(emit)

	catalog, err := LoadServiceCatalog("")
	if err != nil {
		t.Fatalf("LoadServiceCatalog: %v", err)
	}
	resRepo := conciergerepo.NewReservationRepo(db, log)
	reqRepo := conciergerepo.NewServiceRequestRepo(db, log)

	now := time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC)
	rs := NewReservationService(db, log, resRepo, notify).(*reservationService)
	rs.pinCost = bcrypt.MinCost
	rs.now = func() time.Time { return now }
	sr := NewServiceRequestService(log, resRepo, reqRepo, catalog, notify, observability.New()).(*serviceRequestService)
	sr.now = func() time.Time { return now }

	return &conciergeHarness{db: db, emit: emit, reservations: rs, requests: sr, now: now}
}

func (h *conciergeHarness) importStay(t *testing.T, code string) {
	t.Helper()
	_, err := h.reservations.Import(context.Background(), []ReservationImport{{
		ConfirmationCode: code,
		GuestLastName:    "Moreau",
		VillaName:        "Villa Serena",
		CheckIn:          h.now.Add(-24 * time.Hour),
		CheckOut:         h.now.Add(5 * 24 * time.Hour),
		PIN:              "4821",
	}})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
}

func TestReservationLink(t *testing.T) {
	ctx := context.Background()
	h := newConciergeHarness(t)
	h.importStay(t, "vs-1001")
	guest := uuid.New()

	cases := []struct {
		name, code, last, pin string
	}{
		{"unknown code", "VS-9999", "Moreau", "4821"},
		{"wrong last name", "VS-1001", "Martin", "4821"},
		{"wrong pin", "VS-1001", "Moreau", "0000"},
	}
	for _, tc := range cases {
		if _, err := h.reservations.Link(ctx, guest, tc.code, tc.last, tc.pin); !errors.Is(err, apierr.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", tc.name, err)
		}
	}

	res, err := h.reservations.Link(ctx, guest, " vs-1001 ", "moreau", "4821")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if res.UserID == nil || *res.UserID != guest || res.LinkedAt == nil {
		t.Fatalf("link not recorded: %+v", res)
	}
	if _, err := h.reservations.Link(ctx, guest, "VS-1001", "Moreau", "4821"); err != nil {
		t.Fatalf("relink by same guest: %v", err)
	}
	if _, err := h.reservations.Link(ctx, uuid.New(), "VS-1001", "Moreau", "4821"); !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("link by other guest: expected conflict, got %v", err)
	}
	if got := h.emit.count(realtime.SSEEventReservationLinked); got != 1 {
		t.Fatalf("link events: got=%d want=1", got)
	}

	mine, err := h.reservations.ListMine(ctx, guest)
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListMine: got=%d err=%v", len(mine), err)
	}
}

func TestReservationImportValidates(t *testing.T) {
	h := newConciergeHarness(t)
	_, err := h.reservations.Import(context.Background(), []ReservationImport{{
		ConfirmationCode: "VS-1",
		GuestLastName:    "Moreau",
		CheckIn:          h.now,
		CheckOut:         h.now,
		PIN:              "1",
	}})
	if !errors.Is(err, apierr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newConciergeHarness(t)
	guest := uuid.New()
	in := CreateServiceRequestInput{
		Category:     concierge.CategoryTransport,
		Options:      json.RawMessage(`{"pickup":"Airport","dropoff":"Villa","passengers":3}`),
		ScheduledFor: h.now.Add(6 * time.Hour),
	}

	if _, err := h.requests.Create(ctx, guest, in); !errors.Is(err, apierr.ErrValidation) {
		t.Fatalf("without a reservation: expected validation, got %v", err)
	}

	h.importStay(t, "VS-2002")
	if _, err := h.reservations.Link(ctx, guest, "VS-2002", "Moreau", "4821"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	late := in
	late.ScheduledFor = h.now.Add(30 * 24 * time.Hour)
	if _, err := h.requests.Create(ctx, guest, late); !errors.Is(err, apierr.ErrValidation) {
		t.Fatalf("outside stay: expected validation, got %v", err)
	}

	req, err := h.requests.Create(ctx, guest, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != concierge.StatusPending {
		t.Fatalf("status: got=%s want=pending", req.Status)
	}
	var opts concierge.TransportOptions
	if err := json.Unmarshal(req.Options, &opts); err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Vehicle != "sedan" {
		t.Fatalf("default vehicle: got=%q want=sedan", opts.Vehicle)
	}

	if _, err := h.requests.UpdateStatus(ctx, req.ID, concierge.StatusCompleted); !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("skip to completed: expected conflict, got %v", err)
	}
	confirmed, err := h.requests.UpdateStatus(ctx, req.ID, concierge.StatusConfirmed)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if confirmed.Status != concierge.StatusConfirmed {
		t.Fatalf("status: got=%s want=confirmed", confirmed.Status)
	}
	if _, err := h.requests.Cancel(ctx, guest, req.ID); !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("cancel after confirm: expected conflict, got %v", err)
	}

	list, err := h.requests.ListMine(ctx, guest, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListMine: got=%d err=%v", len(list), err)
	}
	if got := h.emit.count(realtime.SSEEventServiceRequestUpdated); got != 2 {
		t.Fatalf("request events: got=%d want=2", got)
	}
}

func TestServiceRequestCancelByOwner(t *testing.T) {
	ctx := context.Background()
	h := newConciergeHarness(t)
	guest := uuid.New()
	h.importStay(t, "VS-3003")
	if _, err := h.reservations.Link(ctx, guest, "VS-3003", "Moreau", "4821"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	req, err := h.requests.Create(ctx, guest, CreateServiceRequestInput{
		Category:     concierge.CategorySalon,
		Options:      json.RawMessage(`{"treatment":"Massage","guests":2}`),
		ScheduledFor: h.now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := h.requests.Cancel(ctx, uuid.New(), req.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("foreign cancel: expected not found, got %v", err)
	}
	cancelled, err := h.requests.Cancel(ctx, guest, req.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != concierge.StatusCancelled {
		t.Fatalf("status: got=%s want=cancelled", cancelled.Status)
	}
	if _, err := h.requests.UpdateStatus(ctx, req.ID, concierge.StatusConfirmed); !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("update terminal: expected conflict, got %v", err)
	}
}

func TestServiceCatalogValidate(t *testing.T) {
	catalog, err := LoadServiceCatalog("")
	if err != nil {
		t.Fatalf("LoadServiceCatalog: %v", err)
	}
	if len(catalog.Entries()) != 3 {
		t.Fatalf("entries: got=%d want=3", len(catalog.Entries()))
	}

	cases := []struct {
		name     string
		category concierge.Category
		raw      string
		ok       bool
	}{
		{"cleaning rooms", concierge.CategoryCleaning, `{"rooms":["Kitchen","kitchen","pool"],"deep":true}`, true},
		{"cleaning no rooms", concierge.CategoryCleaning, `{"rooms":[]}`, false},
		{"cleaning unknown room", concierge.CategoryCleaning, `{"rooms":["attic"]}`, false},
		{"unknown field", concierge.CategoryCleaning, `{"rooms":["pool"],"color":"red"}`, false},
		{"transport too many", concierge.CategoryTransport, `{"pickup":"a","dropoff":"b","passengers":12}`, false},
		{"transport bad vehicle", concierge.CategoryTransport, `{"pickup":"a","dropoff":"b","passengers":1,"vehicle":"boat"}`, false},
		{"salon default guests", concierge.CategorySalon, `{"treatment":"facial"}`, true},
		{"salon unknown", concierge.CategorySalon, `{"treatment":"tattoo","guests":1}`, false},
		{"unknown category", concierge.Category("laundry"), `{}`, false},
	}
	for _, tc := range cases {
		_, err := catalog.Validate(tc.category, []byte(tc.raw))
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, apierr.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	opts, _ := catalog.Validate(concierge.CategoryCleaning, []byte(`{"rooms":["Kitchen","kitchen","pool"]}`))
	if rooms := opts.(concierge.CleaningOptions).Rooms; len(rooms) != 2 {
		t.Fatalf("rooms should be normalized and deduplicated, got %v", rooms)
	}
}

func TestParseServiceCatalogRejectsBadFiles(t *testing.T) {
	bad := map[string]string{
		"empty":     `categories: []`,
		"unknown":   "categories:\n  - category: laundry\n",
		"no rooms":  "categories:\n  - category: cleaning\n",
		"duplicate": "categories:\n  - category: salon\n    treatments: [facial]\n    max_guests: 1\n  - category: salon\n    treatments: [facial]\n    max_guests: 1\n",
	}
	for name, raw := range bad {
		if _, err := ParseServiceCatalog([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
