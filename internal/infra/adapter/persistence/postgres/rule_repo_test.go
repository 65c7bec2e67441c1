package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/adapter/persistence/postgres"
)

/* ──────────────────────────────── helpers ──────────────────────────────── */

func metaRows(rules ...entity.Rule) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "meta_key", "meta_value"})
	for _, r := range rules {
		for k, v := range r.Meta() {
			rows.AddRow(r.ID, r.Title, k, v)
		}
	}
	return rows
}

func sampleRule(id int64) entity.Rule {
	return entity.Rule{
		ID:        id,
		Namespace: "rbm",
		Title:     "Sales",
		Trigger:   entity.TriggerPurchaseCompleted,
		Fields: entity.MessageFields{
			WebhookURL: "https://hooks.slack.com/services/T/B/X",
			Channel:    "#sales",
			Text:       "Sold %cart%",
		},
		Filters: entity.FilterFields{
			Download:     []string{"42", "7-3"},
			DiscountCode: "SAVE10",
			Extra:        map[string]string{"payment_id": "9"},
		},
	}
}

/* ──────────────────────────────── 1. FindByTrigger ──────────────────────────────── */

func TestRuleRepo_FindByTrigger(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := []entity.Rule{sampleRule(1), sampleRule(3)}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT f.id, f.title, m.meta_key, m.meta_value`)).
		WithArgs("rbm", "rbm_feed_trigger", "purchase_completed").
		WillReturnRows(metaRows(want...))

	repo := postgres.NewRuleRepo(db)
	got, err := repo.FindByTrigger(context.Background(), "rbm", entity.TriggerPurchaseCompleted)
	if err != nil {
		t.Fatalf("FindByTrigger err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRuleRepo_FindByTrigger_Empty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM feeds`).WillReturnRows(metaRows())

	got, err := postgres.NewRuleRepo(db).FindByTrigger(context.Background(), "rbm", entity.TriggerReviewPosted)
	if err != nil || len(got) != 0 {
		t.Fatalf("FindByTrigger err=%v len=%d", err, len(got))
	}
}

func TestRuleRepo_FindByTrigger_Error(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM feeds`).WillReturnError(errors.New("connection refused"))

	if _, err := postgres.NewRuleRepo(db).FindByTrigger(context.Background(), "rbm", entity.TriggerReviewPosted); err == nil {
		t.Fatal("expected error")
	}
}

/* ──────────────────────────────── 2. List ──────────────────────────────── */

func TestRuleRepo_List(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`WHERE f.namespace = \$1`).
		WithArgs("rbm").
		WillReturnRows(metaRows(sampleRule(2)))

	got, err := postgres.NewRuleRepo(db).List(context.Background(), "rbm")
	if err != nil || len(got) != 1 {
		t.Fatalf("List err=%v len=%d", err, len(got))
	}
	if got[0].Filters.Extra["payment_id"] != "9" {
		t.Errorf("extra field lost: %+v", got[0].Filters)
	}
}

/* ──────────────────────────────── 3. Create ──────────────────────────────── */

func TestRuleRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rule := sampleRule(0)
	rule.Filters = entity.FilterFields{}
	rule.Fields = entity.MessageFields{Text: "hi"}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO feeds`)).
		WithArgs("rbm", "Sales").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO feed_meta`)).
		WithArgs(int64(11), "rbm_feed_message_text", "hi").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO feed_meta`)).
		WithArgs(int64(11), "rbm_feed_trigger", "purchase_completed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := postgres.NewRuleRepo(db).Create(context.Background(), &rule); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if rule.ID != 11 {
		t.Errorf("ID = %d, want 11", rule.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
