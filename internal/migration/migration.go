package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/crm/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/crm/internal/payroll/domain"
	recordsdomain "github.com/smallbiznis/crm/internal/records/domain"
	taskdomain "github.com/smallbiznis/crm/internal/task/domain"
	ticketdomain "github.com/smallbiznis/crm/internal/ticket/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the resource services own, in creation order.
func Models() []any {
	return []any{
		&invoicedomain.Invoice{},
		&paymentdomain.Payment{},
		&ticketdomain.Ticket{},
		&taskdomain.Task{},
		&payrolldomain.Payroll{},
		&payrolldomain.Attendance{},
		&recordsdomain.Record{},
		&notificationdomain.Delivery{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL files;
// sqlite and mysql are created from the models.
func Run(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dbType != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB

	return nil
}
