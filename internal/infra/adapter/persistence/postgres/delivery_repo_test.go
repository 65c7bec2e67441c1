package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"slack-bridge/internal/domain/entity"
	"slack-bridge/internal/infra/adapter/persistence/postgres"
)

func TestDeliveryRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := &entity.Delivery{
		ID: "d1", EventID: "e1", RuleID: 3, Namespace: "rbm",
		Trigger: entity.TriggerPurchaseCompleted, Status: entity.DeliverySent,
		Kind: "webhook", Attempts: 1, Duration: 1500 * time.Millisecond, CreatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO deliveries`)).
		WithArgs("d1", "e1", int64(3), "rbm", "purchase_completed", "sent", "", "webhook", 1, "", int64(1500), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := postgres.NewDeliveryRepo(db).Create(context.Background(), d); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_ListRecent(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM deliveries`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "event_id", "rule_id", "namespace", "trigger", "status",
			"reason", "kind", "attempts", "error", "duration_ms", "created_at",
		}).AddRow("d1", "e1", int64(3), "rbm", "review_posted", "bailed", "download_mismatch", "", 0, "", int64(2), now))

	got, err := postgres.NewDeliveryRepo(db).ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent err=%v", err)
	}

	want := []*entity.Delivery{{
		ID: "d1", EventID: "e1", RuleID: 3, Namespace: "rbm",
		Trigger: entity.TriggerReviewPosted, Status: entity.DeliveryBailed,
		Reason: "download_mismatch", Duration: 2 * time.Millisecond, CreatedAt: now,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
