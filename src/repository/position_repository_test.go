package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"optionsengine/src/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func positionRows(returned ...model.Position) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "symbol", "option_symbol", "quantity", "entry_price", "status"})
	for _, position := range returned {
		rows.AddRow(position.ID, position.UserID, position.Symbol, position.OptionSymbol, position.Quantity, position.EntryPrice, position.Status)
	}
	return rows
}

func TestPositionRepositoryFindByID(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PositionRepository{db: mockDB}

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE "positions"."id" = $1 ORDER BY "positions"."id" LIMIT $2`)).
			WithArgs(uint(5), 1).
			WillReturnRows(positionRows(model.Position{ID: 5, UserID: 1, Symbol: "AAPL", Quantity: 2, EntryPrice: 5.00, Status: model.PositionStatusOpen}))

		position, err := repo.FindByID(context.Background(), 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if position == nil || position.Symbol != "AAPL" {
			t.Fatalf("unexpected position: %+v", position)
		}
	})

	t.Run("not found returns nil", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE "positions"."id" = $1 ORDER BY "positions"."id" LIMIT $2`)).
			WithArgs(uint(99), 1).
			WillReturnRows(positionRows())

		position, err := repo.FindByID(context.Background(), 99)
		if err != nil {
			t.Fatalf("expected nil error for missing position, got %v", err)
		}
		if position != nil {
			t.Fatalf("expected nil position, got %+v", position)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryFindOpenByUser(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PositionRepository{db: mockDB}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE user_id = $1 AND status = $2 ORDER BY id ASC`)).
		WithArgs(uint(1), model.PositionStatusOpen).
		WillReturnRows(positionRows(
			model.Position{ID: 1, UserID: 1, Symbol: "AAPL", Status: model.PositionStatusOpen},
			model.Position{ID: 2, UserID: 1, Symbol: "MSFT", Status: model.PositionStatusOpen},
		))

	positions, err := repo.FindOpenByUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 open positions, got %d", len(positions))
	}
	if positions[0].Symbol != "AAPL" || positions[1].Symbol != "MSFT" {
		t.Fatalf("positions not returned in expected order: %+v", positions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryFindByUserAppliesDefaultLimit(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PositionRepository{db: mockDB}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE user_id = $1 ORDER BY status ASC, id DESC LIMIT $2`)).
		WithArgs(uint(1), 100).
		WillReturnRows(positionRows(model.Position{ID: 3, UserID: 1, Symbol: "AAPL", Status: model.PositionStatusClosed}))

	positions, err := repo.FindByUser(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryOpenPositionMatching(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PositionRepository{db: mockDB}

	t.Run("matches by option symbol", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE (user_id = $1 AND symbol = $2 AND status = $3) AND option_symbol = $4 ORDER BY id ASC,"positions"."id" LIMIT $5`)).
			WithArgs(uint(1), "AAPL", model.PositionStatusOpen, "AAPL250718C00200000", 1).
			WillReturnRows(positionRows(model.Position{ID: 4, UserID: 1, Symbol: "AAPL", OptionSymbol: "AAPL250718C00200000", Status: model.PositionStatusOpen}))

		position, err := repo.OpenPositionMatching(context.Background(), 1, "AAPL", "AAPL250718C00200000", 0, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if position == nil || position.ID != 4 {
			t.Fatalf("unexpected match: %+v", position)
		}
	})

	t.Run("no match returns nil", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE (user_id = $1 AND symbol = $2 AND status = $3) AND option_symbol = $4 ORDER BY id ASC,"positions"."id" LIMIT $5`)).
			WithArgs(uint(1), "AAPL", model.PositionStatusOpen, "AAPL250718P00180000", 1).
			WillReturnRows(positionRows())

		position, err := repo.OpenPositionMatching(context.Background(), 1, "AAPL", "AAPL250718P00180000", 0, "")
		if err != nil {
			t.Fatalf("expected nil error when nothing matches, got %v", err)
		}
		if position != nil {
			t.Fatalf("expected nil position, got %+v", position)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
