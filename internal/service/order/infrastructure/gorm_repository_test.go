package infrastructure

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"ordersaga/internal/service/order/domain"
)

func newMockRepo(t *testing.T) (*GormOrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewGormOrderRepository(gdb), mock
}

func confirmedOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := domain.NewConfirmedOrder("o1", *testSnapshot(), time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestGormOrderRepository_Save(t *testing.T) {
	cases := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"created", 1, true},
		{"duplicate", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			created, err := repo.Save(context.Background(), confirmedOrder(t))
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if created != tc.want {
				t.Fatalf("created = %v, want %v", created, tc.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestGormOrderRepository_SaveError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).WillReturnError(errors.New("connection reset"))
	if _, err := repo.Save(context.Background(), confirmedOrder(t)); err == nil {
		t.Fatal("expected error")
	}
}

func TestGormOrderRepository_FindByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	placed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	confirmed := placed.Add(time.Minute)
	rows := sqlmock.NewRows([]string{"id", "customer_id", "product_ids", "total_amount", "status", "placed_time", "confirmed_time", "created_at"}).
		AddRow("o1", "c1", `["p1","p2"]`, 42.0, "CONFIRMED", placed, confirmed, confirmed)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders`")).WillReturnRows(rows)

	o, err := repo.FindByID(context.Background(), "o1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if o.ID != "o1" || o.State != domain.StateConfirmed || len(o.Snapshot.ProductIDs) != 2 || o.Snapshot.ProductIDs[1] != "p2" {
		t.Fatalf("order = %+v", o)
	}
	if o.Snapshot.ConfirmedTime == nil || !o.Snapshot.ConfirmedTime.Equal(confirmed) {
		t.Fatalf("confirmed time = %v", o.Snapshot.ConfirmedTime)
	}
}

func TestGormOrderRepository_FindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.FindByID(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestGormOrderRepository_FindAll(t *testing.T) {
	repo, mock := newMockRepo(t)
	placed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "customer_id", "product_ids", "total_amount", "status", "placed_time"}).
		AddRow("o2", "c1", `["p1"]`, 1.0, "CONFIRMED", placed.Add(time.Minute)).
		AddRow("o1", "c2", `["p2"]`, 2.0, "CONFIRMED", placed)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders` ORDER BY placed_time DESC")).WillReturnRows(rows)

	orders, err := repo.FindAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 || orders[0].ID != "o2" || orders[1].Snapshot.CustomerID != "c2" {
		t.Fatalf("orders = %+v", orders)
	}
}
